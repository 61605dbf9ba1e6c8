// Package codec provides the compression codecs used by the column
// storage layer, with a numeric codec id registry that is embedded in the
// payload wire format.
//
// A compressed column payload begins with a little-endian int32 equal to
// the negated codec id, followed by a little-endian uint32 holding the
// uncompressed size, followed by the codec's block output. A decompressed
// payload begins with a non-negative int32 table encoding id, so the sign
// of the leading word alone distinguishes the two forms.
//
// # Algorithm Selection
//
// Choose codecs based on your requirements:
//   - Snappy/S2: best for speed, moderate compression
//   - LZ4: extremely fast, decent compression
//   - Zstd: best compression ratio, good speed
package codec

import (
	"encoding/binary"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meridiandb/meridian/pkg/errors"
)

// ID identifies a compression codec on the wire. The zero id means the
// payload is stored uncompressed.
type ID uint8

const (
	// None stores payloads uncompressed
	None ID = 0
	// Snappy is snappy block compression
	Snappy ID = 1
	// LZ4 is lz4 block compression
	LZ4 ID = 2
	// Zstd is zstandard compression
	Zstd ID = 3
	// S2 is s2 compression (snappy compatible, better ratio)
	S2 ID = 4
)

// headerSize is the leading codec id int32 plus the uncompressed size.
const headerSize = 8

// DefaultMinRatio is the compression ratio a codec must beat for its
// output to be kept; outputs at or above this fraction of the input size
// are discarded and the payload stays uncompressed.
const DefaultMinRatio = 0.9

// String returns the codec name used in configuration.
func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case S2:
		return "s2"
	default:
		return "unknown"
	}
}

// Parse maps a configuration name to a codec id.
func Parse(name string) (ID, error) {
	switch name {
	case "", "none":
		return None, nil
	case "snappy":
		return Snappy, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "s2":
		return S2, nil
	default:
		return None, errors.Newf(errors.ErrorTypeConfig, "unsupported compression codec %q", name)
	}
}

// IsCompressed reports whether id names a codec that actually compressed
// the payload.
func IsCompressed(id ID) bool {
	switch id {
	case Snappy, LZ4, Zstd, S2:
		return true
	default:
		return false
	}
}

// Valid reports whether id is a known codec id, including None.
func Valid(id ID) bool {
	return id == None || IsCompressed(id)
}

// zstd coders are expensive to construct, so they are pooled the same way
// the streaming compressors are elsewhere in the system.
var (
	zstdEncPool = sync.Pool{New: func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return enc
	}}
	zstdDecPool = sync.Pool{New: func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}}
)

// compressBlock runs the codec over src and returns its raw block output.
// A nil result with nil error means the codec declined the input.
func compressBlock(id ID, src []byte) ([]byte, error) {
	switch id {
	case Snappy:
		return snappy.Encode(make([]byte, snappy.MaxEncodedLen(len(src))), src), nil
	case S2:
		return s2.Encode(make([]byte, s2.MaxEncodedLen(len(src))), src), nil
	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		var c lz4.Compressor
		n, err := c.CompressBlock(src, dst)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "lz4 compress")
		}
		if n == 0 {
			// Incompressible input.
			return nil, nil
		}
		return dst[:n], nil
	case Zstd:
		enc := zstdEncPool.Get().(*zstd.Encoder)
		defer zstdEncPool.Put(enc)
		return enc.EncodeAll(src, nil), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeBadArgument, "compress with codec id %d", id)
	}
}

// decompressBlock expands the codec block src into dst, which must have
// capacity for exactly the uncompressed size.
func decompressBlock(id ID, src, dst []byte) error {
	switch id {
	case Snappy:
		out, err := snappy.Decode(dst, src)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeCorruptValue, "snappy decode")
		}
		if len(out) != len(dst) {
			return errors.Newf(errors.ErrorTypeCorruptValue, "snappy decoded %d bytes, want %d", len(out), len(dst))
		}
		return nil
	case S2:
		out, err := s2.Decode(dst, src)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeCorruptValue, "s2 decode")
		}
		if len(out) != len(dst) {
			return errors.Newf(errors.ErrorTypeCorruptValue, "s2 decoded %d bytes, want %d", len(out), len(dst))
		}
		return nil
	case LZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeCorruptValue, "lz4 decode")
		}
		if n != len(dst) {
			return errors.Newf(errors.ErrorTypeCorruptValue, "lz4 decoded %d bytes, want %d", n, len(dst))
		}
		return nil
	case Zstd:
		dec := zstdDecPool.Get().(*zstd.Decoder)
		defer zstdDecPool.Put(dec)
		out, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeCorruptValue, "zstd decode")
		}
		if len(out) != len(dst) {
			return errors.Newf(errors.ErrorTypeCorruptValue, "zstd decoded %d bytes, want %d", len(out), len(dst))
		}
		return nil
	default:
		return errors.Newf(errors.ErrorTypeBadArgument, "decompress with codec id %d", id)
	}
}

// PeekID inspects the leading little-endian int32 of a payload and
// returns the codec id when the payload is compressed, or None when the
// leading word is a non-negative table encoding id.
func PeekID(payload []byte) (ID, bool) {
	if len(payload) < 4 {
		return None, false
	}
	leading := int32(binary.LittleEndian.Uint32(payload))
	if leading >= 0 {
		return None, false
	}
	return ID(-leading), true
}
