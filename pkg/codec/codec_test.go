package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/meridiandb/meridian/pkg/buffer"
)

func compressiblePayload(n int) []byte {
	b := make([]byte, n)
	binary.LittleEndian.PutUint32(b, 10) // non-negative encoding id
	for i := 4; i < n; i++ {
		b[i] = byte(i % 5)
	}
	return b
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := compressiblePayload(16 * 1024)

	for _, id := range []ID{Snappy, LZ4, Zstd, S2} {
		t.Run(id.String(), func(t *testing.T) {
			ref, shrunk, err := Compress(id, payload, alloc, 0, nil)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}
			if !shrunk {
				t.Fatalf("Codec %v declined a compressible payload", id)
			}
			defer ref.Release()

			out := ref.Bytes()
			if len(out) >= len(payload) {
				t.Errorf("Compressed size %d is not smaller than original %d", len(out), len(payload))
			}

			gotID, compressed := PeekID(out)
			if !compressed || gotID != id {
				t.Fatalf("Leading word decodes to (%v, %v), want (%v, true)", gotID, compressed, id)
			}
			if ref.Owner() != buffer.OwnerDecompress {
				t.Errorf("Scratch output charged to %v, want decompress owner", ref.Owner())
			}

			restored, decID, err := Decompress(out, alloc, nil)
			if err != nil {
				t.Fatalf("Failed to decompress: %v", err)
			}
			defer restored.Release()

			if decID != id {
				t.Errorf("Decompress reported codec %v, want %v", decID, id)
			}
			if !bytes.Equal(payload, restored.Bytes()) {
				t.Errorf("Round trip corrupted payload: %d bytes in, %d out", len(payload), restored.Len())
			}

			t.Logf("%v: original %d bytes, compressed %d bytes, ratio %.2f%%",
				id, len(payload), len(out), float64(len(out))/float64(len(payload))*100)
		})
	}
}

func TestCompressDeclinesIncompressible(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := make([]byte, 4096)
	binary.LittleEndian.PutUint32(payload, 10)
	// xorshift fill; codecs cannot shrink this.
	x := uint32(0x9E3779B9)
	for i := 4; i < len(payload); i++ {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		payload[i] = byte(x)
	}

	for _, id := range []ID{Snappy, LZ4, Zstd, S2} {
		ref, shrunk, err := Compress(id, payload, alloc, 0, nil)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", id, err)
		}
		if shrunk {
			ref.Release()
			t.Errorf("%v: shrunk random data below the ratio threshold", id)
		}
	}

	// None is never a compressor.
	if ref, shrunk, err := Compress(None, payload, alloc, 0, nil); err != nil || shrunk || ref != nil {
		t.Errorf("Compress(None) = (%v, %v, %v), want declined", ref, shrunk, err)
	}
}

func TestDecompressRejectsBadInput(t *testing.T) {
	alloc := buffer.NewAllocator()

	// Non-negative leading word.
	if _, _, err := Decompress(compressiblePayload(64), alloc, nil); err == nil {
		t.Error("Decompress accepted a decompressed payload")
	}

	// Unknown codec id.
	bad := make([]byte, 12)
	negCodec := int32(-99)
	binary.LittleEndian.PutUint32(bad, uint32(negCodec))
	if _, _, err := Decompress(bad, alloc, nil); err == nil {
		t.Error("Decompress accepted an unknown codec id")
	}

	// Truncated header.
	short := make([]byte, 6)
	negMarker := int32(-1)
	binary.LittleEndian.PutUint32(short, uint32(negMarker))
	if _, _, err := Decompress(short, alloc, nil); err == nil {
		t.Error("Decompress accepted a truncated payload")
	}
}

func TestParseAndString(t *testing.T) {
	cases := map[string]ID{
		"none":   None,
		"":       None,
		"snappy": Snappy,
		"lz4":    LZ4,
		"zstd":   Zstd,
		"s2":     S2,
	}
	for name, want := range cases {
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := Parse("brotli"); err == nil {
		t.Error("Parse accepted an unsupported codec")
	}

	if !IsCompressed(Snappy) || IsCompressed(None) || IsCompressed(ID(200)) {
		t.Error("IsCompressed misclassifies ids")
	}
}

func TestPeekID(t *testing.T) {
	b := make([]byte, 8)
	zstdMarker := int32(-3)
	binary.LittleEndian.PutUint32(b, uint32(zstdMarker))
	if id, compressed := PeekID(b); !compressed || id != Zstd {
		t.Errorf("PeekID = (%v, %v), want (Zstd, true)", id, compressed)
	}

	binary.LittleEndian.PutUint32(b, 10)
	if _, compressed := PeekID(b); compressed {
		t.Error("PeekID reported a decompressed payload as compressed")
	}

	if _, compressed := PeekID(b[:2]); compressed {
		t.Error("PeekID read past a short payload")
	}
}
