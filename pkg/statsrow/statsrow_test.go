package statsrow

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRowRoundTrip(t *testing.T) {
	var b Builder
	payload := b.Add(FieldRowCount, 8192).Add(FieldDeletedCount, 17).Encode()

	// Leads with a non-negative encoding id, as every decompressed
	// column payload must.
	leading := int32(binary.LittleEndian.Uint32(payload))
	assert.Equal(t, StatsEncodingID, leading)

	var r Reader
	rows, err := r.RowCount(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), rows)

	deleted, err := r.Field(payload, FieldDeletedCount)
	require.NoError(t, err)
	assert.Equal(t, int64(17), deleted)
}

func TestStatsRowMissingField(t *testing.T) {
	var b Builder
	payload := b.Add(FieldDeletedCount, 3).Encode()

	var r Reader
	_, err := r.RowCount(payload)
	assert.Error(t, err)
}

func TestStatsRowRejectsGarbage(t *testing.T) {
	var r Reader

	_, err := r.RowCount([]byte{1, 2})
	assert.Error(t, err)

	wrong := make([]byte, 16)
	binary.LittleEndian.PutUint32(wrong, 99)
	_, err = r.RowCount(wrong)
	assert.Error(t, err)

	// Declared field count larger than the payload.
	var b Builder
	payload := b.Add(FieldRowCount, 1).Encode()
	binary.LittleEndian.PutUint16(payload[4:], 40)
	_, err = r.RowCount(payload)
	assert.Error(t, err)
}

func TestDeleteMaskRoundTrip(t *testing.T) {
	mask := DeleteMask{Deleted: 3, Bitmap: []byte{0b10100001, 0x00, 0x04}}
	payload := EncodeDeleteMask(mask)

	leading := int32(binary.LittleEndian.Uint32(payload))
	assert.Equal(t, DeleteMaskEncodingID, leading)

	got, err := DecodeDeleteMask(payload)
	require.NoError(t, err)
	assert.Equal(t, mask.Deleted, got.Deleted)
	assert.Equal(t, mask.Bitmap, got.Bitmap)

	_, err = DecodeDeleteMask(payload[:4])
	assert.Error(t, err)
}
