package codec

import (
	"encoding/binary"

	"github.com/meridiandb/meridian/pkg/buffer"
	"github.com/meridiandb/meridian/pkg/stats"
)

// Compress runs the codec over a full column payload (including its
// leading table encoding id) and returns a fresh direct buffer holding
// the compressed form, charged to the codec scratch owner.
//
// The second result is false when the codec output did not improve below
// minRatio of the input size; the input payload should then be kept
// verbatim and the entry marked not-compressible. Pass minRatio <= 0 to
// use DefaultMinRatio. Timing is recorded against st when provided.
func Compress(id ID, src []byte, alloc *buffer.Allocator, minRatio float64, st *stats.CachePerfStats) (*buffer.BufferRef, bool, error) {
	if !IsCompressed(id) {
		return nil, false, nil
	}
	if minRatio <= 0 {
		minRatio = DefaultMinRatio
	}
	start := st.StartCompression()

	block, err := compressBlock(id, src)
	if err != nil {
		return nil, false, err
	}
	if block == nil || float64(headerSize+len(block)) >= float64(len(src))*minRatio {
		st.CompressionSkipped()
		return nil, false, nil
	}

	ref, err := alloc.AllocateDirect(headerSize+len(block), buffer.OwnerDecompress)
	if err != nil {
		return nil, false, err
	}
	out := ref.Bytes()
	binary.LittleEndian.PutUint32(out, uint32(-int32(id)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(src)))
	copy(out[headerSize:], block)

	st.EndCompression(start)
	return ref, true, nil
}

// Decompress expands a compressed column payload into a fresh direct
// buffer charged to the codec scratch owner. The payload must begin with
// the negated codec id; the restored bytes are the original payload with
// its non-negative leading table encoding id.
func Decompress(src []byte, alloc *buffer.Allocator, st *stats.CachePerfStats) (*buffer.BufferRef, ID, error) {
	id, compressed := PeekID(src)
	if !compressed {
		return nil, None, newNotCompressedErr(src)
	}
	if !IsCompressed(id) {
		return nil, None, newUnknownCodecErr(id)
	}
	if len(src) < headerSize {
		return nil, None, newShortPayloadErr(len(src))
	}
	start := st.StartDecompression()

	rawLen := int(binary.LittleEndian.Uint32(src[4:]))
	ref, err := alloc.AllocateDirect(rawLen, buffer.OwnerDecompress)
	if err != nil {
		return nil, None, err
	}
	if err := decompressBlock(id, src[headerSize:], ref.Bytes()); err != nil {
		ref.Release()
		return nil, None, err
	}

	st.EndDecompression(start)
	return ref, id, nil
}
