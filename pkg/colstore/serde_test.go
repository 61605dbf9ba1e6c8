package colstore

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiandb/meridian/pkg/buffer"
	"github.com/meridiandb/meridian/pkg/codec"
	"github.com/meridiandb/meridian/pkg/errors"
	"github.com/meridiandb/meridian/pkg/testutil"
)

func TestWriteToHeaderLayout(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := []byte{0x0A, 0, 0, 0} // leading encoding id 10, decompressed
	v := newHeapValue(t, alloc, payload, codec.None)

	var out bytes.Buffer
	require.NoError(t, v.WriteTo(&out, WriteOptions{SameHost: true}))

	b := out.Bytes()
	require.Len(t, b, 12)
	assert.Equal(t, wireFixedID, b[0])
	assert.Equal(t, wireStoreType, b[1])
	assert.Equal(t, wireIDValue, b[2])
	assert.Equal(t, byte(0), b[3])
	assert.Equal(t, []byte{0, 0, 0, 4}, b[4:8], "length is big-endian by default")
	assert.Equal(t, payload, b[8:])

	got, err := ReadValue(bytes.NewReader(b), nil, alloc)
	require.NoError(t, err)
	assert.Equal(t, KindValue, got.Kind())
	assert.False(t, got.IsCompressed())
	assert.Equal(t, valueState(1), got.st)
	assert.Equal(t, codec.None, got.CodecID())
	assert.Equal(t, payload, got.Payload())
	got.Release()
	v.Release()
}

func TestCompressedMarkerDecoding(t *testing.T) {
	// A payload leading with -2 names the lz4 codec.
	payload := make([]byte, 8)
	lz4Marker := int32(-2)
	binary.LittleEndian.PutUint32(payload, uint32(lz4Marker))
	binary.LittleEndian.PutUint32(payload[4:], 4)

	v := NewValue(nil)
	require.NoError(t, v.FromData(payload))
	assert.True(t, v.IsCompressed())
	assert.Equal(t, codec.LZ4, v.CodecID())
	v.Release()
}

func TestWireRoundTripCompressed(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := testutil.CompressiblePayload(10, 4096)
	v := newHeapValue(t, alloc, payload, codec.Zstd)

	// Not same-host, so the wire carries the compressed form.
	var out bytes.Buffer
	require.NoError(t, v.WriteTo(&out, WriteOptions{}))

	got, err := ReadValue(bytes.NewReader(out.Bytes()), nil, alloc)
	require.NoError(t, err)
	require.True(t, got.IsCompressed())
	assert.Equal(t, codec.Zstd, got.CodecID())

	d, err := got.GetValueRetain(true, false)
	require.NoError(t, err)
	assert.Equal(t, payload, d.Payload())
	d.Release()
	got.Release()
	v.Release()
}

func TestWriteToLittleEndianLength(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := []byte{0x0A, 0, 0, 0}
	v := newHeapValue(t, alloc, payload, codec.None)

	var out bytes.Buffer
	require.NoError(t, v.WriteTo(&out, WriteOptions{SameHost: true, Order: binary.LittleEndian}))
	assert.Equal(t, []byte{4, 0, 0, 0}, out.Bytes()[4:8])

	got, err := ReadValue(bytes.NewReader(out.Bytes()), binary.LittleEndian, alloc)
	require.NoError(t, err)
	assert.Equal(t, payload, got.Payload())
	got.Release()
	v.Release()
}

func TestWriteToDataEmbeddedForm(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := []byte{0x0A, 0, 0, 0}
	v := newHeapValue(t, alloc, payload, codec.None)

	var out bytes.Buffer
	require.NoError(t, v.WriteToData(&out, nil))

	b := out.Bytes()
	require.Len(t, b, 9)
	assert.Equal(t, byte(0), b[0], "embedded form starts with the pad byte")
	assert.Equal(t, []byte{0, 0, 0, 4}, b[1:5])
	assert.Equal(t, payload, b[5:])

	got := NewValue(alloc)
	require.NoError(t, got.ReadFrom(bytes.NewReader(b), nil))
	assert.Equal(t, payload, got.Payload())
	got.Release()
	v.Release()
}

func TestZeroLengthValue(t *testing.T) {
	alloc := buffer.NewAllocator()
	v := NewValue(alloc)

	var out bytes.Buffer
	require.NoError(t, v.WriteTo(&out, WriteOptions{SameHost: true}))
	assert.Equal(t, []byte{0, 0, 0, 0}, out.Bytes()[4:8])

	got, err := ReadValue(bytes.NewReader(out.Bytes()), nil, alloc)
	require.NoError(t, err)
	assert.Nil(t, got.Payload())
	assert.Equal(t, stateNotCompressible, got.st)
	got.Release()
	v.Release()
}

func TestWriteSerializationHeader(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := []byte{0x0A, 0, 0, 0}
	v := newHeapValue(t, alloc, payload, codec.None)

	short := make([]byte, 7)
	assert.False(t, v.WriteSerializationHeader(short, nil))

	dst := make([]byte, 8)
	require.True(t, v.WriteSerializationHeader(dst, nil))
	assert.Equal(t, wireFixedID, dst[0])
	assert.Equal(t, wireStoreType, dst[1])
	assert.Equal(t, wireIDValue, dst[2])
	assert.Equal(t, []byte{0, 0, 0, 4}, dst[4:8])
	v.Release()
}

func TestReadFromZeroCopyMemoryInput(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := testutil.CompressiblePayload(10, 1024)

	var framed bytes.Buffer
	framed.WriteByte(0)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	framed.Write(lenBuf[:])
	framed.Write(payload)

	// bytes.Buffer exposes Next, so the payload is adopted without a
	// copy.
	v := NewValue(alloc)
	require.NoError(t, v.ReadFrom(&framed, nil))
	assert.Equal(t, payload, v.Payload())
	v.Release()
}

func TestReadFromTruncatedInput(t *testing.T) {
	alloc := buffer.NewAllocator()

	v := NewValue(alloc)
	err := v.ReadFrom(bytes.NewReader([]byte{0, 0, 0}), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	// Header promises more payload than the stream carries.
	var framed bytes.Buffer
	framed.Write([]byte{0, 0, 0, 0, 16})
	framed.Write([]byte{1, 2, 3})
	err = v.ReadFrom(bytes.NewReader(framed.Bytes()), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestReadValueRejectsBadPrefix(t *testing.T) {
	_, err := ReadValue(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0}), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestDeltaKindsRoundTrip(t *testing.T) {
	alloc := buffer.NewAllocator()
	payload := []byte{0x0A, 0, 0, 0}

	for _, kind := range []Kind{KindDelta, KindDeleteDelta} {
		v := New(kind, alloc)
		require.NoError(t, v.SetBuffer(alloc.WrapHeap(append([]byte(nil), payload...)), codec.None, false, false))

		var out bytes.Buffer
		require.NoError(t, v.WriteTo(&out, WriteOptions{SameHost: true}))

		got, err := ReadValue(bytes.NewReader(out.Bytes()), nil, alloc)
		require.NoError(t, err)
		assert.Equal(t, kind, got.Kind())
		assert.Equal(t, payload, got.Payload())
		got.Release()
		v.Release()
	}
}

// slowReader dribbles bytes one at a time with interleaved empty reads,
// the shape a non-blocking channel presents.
type slowReader struct {
	data []byte
	pos  int
	tick bool
}

func (s *slowReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	s.tick = !s.tick
	if s.tick {
		return 0, nil
	}
	p[0] = s.data[s.pos]
	s.pos++
	return 1, nil
}

func TestReadFullBackoff(t *testing.T) {
	payload := testutil.CompressiblePayload(10, 64)
	r := &slowReader{data: payload}

	dst := make([]byte, len(payload))
	require.NoError(t, readFullBackoff(r, dst))
	assert.Equal(t, payload, dst)

	require.Error(t, readFullBackoff(r, make([]byte, 1)))
}
