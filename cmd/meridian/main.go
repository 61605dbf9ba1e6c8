package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridiandb/meridian/pkg/buffer"
	"github.com/meridiandb/meridian/pkg/colstore"
	"github.com/meridiandb/meridian/pkg/config"
	"github.com/meridiandb/meridian/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var (
		cfgPath  string
		logLevel string
	)

	root := &cobra.Command{
		Use:   "meridian",
		Short: "Meridian column storage tools",
		Long:  "Inspect and debug Meridian column-format storage entries.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if cfgPath != "" {
				cfg, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				level = cfg.Observability.LogLevel
			}
			return logger.Init(logger.Config{
				Level:    level,
				Encoding: "console",
			})
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a store config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newKeyCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

// inspectReport is the JSON shape printed for a serialized value.
type inspectReport struct {
	Kind       string `json:"kind"`
	Length     int    `json:"length"`
	Compressed bool   `json:"compressed"`
	Codec      string `json:"codec"`
	EncodingID *int32 `json:"encoding_id,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var littleEndian bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode a serialized column value file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var order binary.ByteOrder = binary.BigEndian
			if littleEndian {
				order = binary.LittleEndian
			}

			v, err := colstore.ReadValue(f, order, buffer.Default)
			if err != nil {
				return err
			}
			defer v.Release()

			report := inspectReport{
				Kind:       v.Kind().String(),
				Compressed: v.IsCompressed(),
				Codec:      v.CodecID().String(),
			}
			payload := v.Payload()
			report.Length = len(payload)
			if len(payload) >= 4 && !report.Compressed {
				enc := int32(binary.LittleEndian.Uint32(payload))
				report.EncodingID = &enc
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&littleEndian, "little-endian", false, "read the length field little-endian")
	return cmd
}

func newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <uuid> <partition> <column>",
		Short: "Encode a column key and show its routing",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			uuid, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad uuid: %w", err)
			}
			part, err := strconv.ParseInt(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("bad partition: %w", err)
			}
			col, err := strconv.ParseInt(args[2], 10, 32)
			if err != nil {
				return fmt.Errorf("bad column index: %w", err)
			}

			k := colstore.ColumnKey{UUID: uuid, PartitionID: int32(part), ColumnIndex: int32(col)}
			out, err := json.MarshalIndent(map[string]interface{}{
				"key":     k.String(),
				"encoded": fmt.Sprintf("%x", k.Encode()),
				"hash":    k.Hash(),
				"routing": k.RoutingObject(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("meridian %s\n", version)
		},
	}
}
