// Package config provides the unified configuration system for the
// Meridian column storage layer. It defines a single StoreConfig
// structure organized into logical sections:
//   - Memory: storage memory limits and accounting
//   - Compression: codec selection and ratio threshold
//   - Disk: overflow store placement and durability
//   - Performance: shard and buffer sizing
//   - Observability: metrics, tracing, logging
//
// Example usage:
//
//	cfg := config.NewStoreConfig("orders")
//	cfg.Compression.Codec = "zstd"
//	cfg.Disk.OverflowDir = "/var/lib/meridian/overflow"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/meridiandb/meridian/pkg/codec"
	"github.com/meridiandb/meridian/pkg/errors"
)

// StoreConfig is the single unified configuration structure for one
// column storage region.
type StoreConfig struct {
	// Name identifies the region
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Memory management configuration
	Memory MemoryConfig `yaml:"memory" json:"memory"`

	// Compression settings for column buffers
	Compression CompressionConfig `yaml:"compression" json:"compression"`

	// Disk overflow settings
	Disk DiskConfig `yaml:"disk" json:"disk"`

	// Performance settings control sizing and concurrency
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// MemoryConfig contains storage memory accounting settings.
type MemoryConfig struct {
	// LimitMB caps granted storage memory; 0 derives a limit from total
	// system memory
	LimitMB int `yaml:"limit_mb" json:"limit_mb"`
	// AccountingEnabled routes buffer replacements through the broker
	AccountingEnabled bool `yaml:"accounting_enabled" json:"accounting_enabled"`
}

// CompressionConfig contains codec settings for column buffers.
type CompressionConfig struct {
	// Codec names the compression codec (none, snappy, lz4, zstd, s2)
	Codec string `yaml:"codec" json:"codec"`
	// MinRatio is the fraction of the input size codec output must beat
	// to be kept
	MinRatio float64 `yaml:"min_ratio" json:"min_ratio"`
}

// DiskConfig contains overflow store settings.
type DiskConfig struct {
	// OverflowDir is the directory overflow segments are written to
	OverflowDir string `yaml:"overflow_dir" json:"overflow_dir"`
	// SegmentSizeMB is the size at which a segment seals
	SegmentSizeMB int `yaml:"segment_size_mb" json:"segment_size_mb"`
	// SyncWrites forces an fsync after every spilled value
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// PerformanceConfig contains sizing settings.
type PerformanceConfig struct {
	// BufferSize is a scratch buffer size setting. No code in this module
	// reads it; the pool package's scratch size classes are fixed.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// FlushInterval is an eviction scan interval setting. No code in this
	// module reads it; entries are evicted only by explicit Store.Evict
	// calls.
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics exposes Prometheus metrics
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing emits OpenTelemetry spans around recall and spill
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets the zap log level
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewStoreConfig returns a configuration with production defaults.
func NewStoreConfig(name string) *StoreConfig {
	return &StoreConfig{
		Name:    name,
		Version: "1",
		Memory: MemoryConfig{
			LimitMB:           0,
			AccountingEnabled: true,
		},
		Compression: CompressionConfig{
			Codec:    "snappy",
			MinRatio: codec.DefaultMinRatio,
		},
		Disk: DiskConfig{
			OverflowDir:   "overflow",
			SegmentSizeMB: 64,
			SyncWrites:    false,
		},
		Performance: PerformanceConfig{
			BufferSize:    64 * 1024,
			FlushInterval: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableTracing: false,
			LogLevel:      "info",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *StoreConfig) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "region name is required")
	}
	if _, err := codec.Parse(c.Compression.Codec); err != nil {
		return err
	}
	if c.Compression.MinRatio < 0 || c.Compression.MinRatio > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "min_ratio %v outside [0, 1]", c.Compression.MinRatio)
	}
	if c.Memory.LimitMB < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "memory limit_mb %d is negative", c.Memory.LimitMB)
	}
	if c.Disk.SegmentSizeMB < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "segment_size_mb %d is negative", c.Disk.SegmentSizeMB)
	}
	if c.Disk.OverflowDir == "" {
		return errors.New(errors.ErrorTypeConfig, "overflow_dir is required")
	}
	return nil
}

// CodecID returns the parsed compression codec. Validate first.
func (c *StoreConfig) CodecID() codec.ID {
	id, _ := codec.Parse(c.Compression.Codec)
	return id
}

// Dump renders the configuration as YAML.
func (c *StoreConfig) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}

// Load reads a configuration file, layering environment variables with
// the MERIDIAN_ prefix over the file contents.
func Load(path string) (*StoreConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MERIDIAN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "read config file")
	}

	cfg := NewStoreConfig("")
	// Field names carry yaml tags; point the decoder at them.
	yamlTags := func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }
	if err := v.Unmarshal(cfg, yamlTags); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
