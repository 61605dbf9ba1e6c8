// Package statsrow encodes and decodes the auxiliary cells stored at
// reserved negative column indexes: the per-batch stats row and the
// delete mask. Payloads use the same little-endian, leading-encoding-id
// layout as every other column payload so they travel through the
// storage, codec and serialization paths unchanged.
package statsrow

import (
	"encoding/binary"

	"github.com/meridiandb/meridian/pkg/errors"
)

// Encoding ids carried in the leading int32 of the payload. Both are
// non-negative so the payloads read as decompressed column values.
const (
	// StatsEncodingID marks a stats row payload
	StatsEncodingID int32 = 24
	// DeleteMaskEncodingID marks a delete mask payload
	DeleteMaskEncodingID int32 = 25
)

// Stats row field ids.
const (
	// FieldRowCount is the number of rows in the batch
	FieldRowCount uint8 = 1
	// FieldDeletedCount is the number of deleted rows in the batch
	FieldDeletedCount uint8 = 2
)

// Layout: i32 encoding id, u16 field count, then (u8 field id, i64 value)
// per field.
const (
	fieldBase = 6
	fieldSize = 9
)

// Builder assembles a stats row payload.
type Builder struct {
	fields []field
}

type field struct {
	id    uint8
	value int64
}

// Add appends a field. Adding the same id twice keeps both; readers use
// the first occurrence.
func (b *Builder) Add(id uint8, value int64) *Builder {
	b.fields = append(b.fields, field{id: id, value: value})
	return b
}

// Encode produces the stats row payload bytes.
func (b *Builder) Encode() []byte {
	out := make([]byte, fieldBase+fieldSize*len(b.fields))
	binary.LittleEndian.PutUint32(out, uint32(StatsEncodingID))
	binary.LittleEndian.PutUint16(out[4:], uint16(len(b.fields)))
	off := fieldBase
	for _, f := range b.fields {
		out[off] = f.id
		binary.LittleEndian.PutUint64(out[off+1:], uint64(f.value))
		off += fieldSize
	}
	return out
}

// Reader parses stats row payloads.
type Reader struct{}

// Field extracts the first occurrence of the given field id.
func (Reader) Field(payload []byte, id uint8) (int64, error) {
	if len(payload) < fieldBase {
		return 0, errors.Newf(errors.ErrorTypeData, "stats row truncated at %d bytes", len(payload))
	}
	if enc := int32(binary.LittleEndian.Uint32(payload)); enc != StatsEncodingID {
		return 0, errors.Newf(errors.ErrorTypeData, "not a stats row (encoding id %d)", enc)
	}
	n := int(binary.LittleEndian.Uint16(payload[4:]))
	if len(payload) < fieldBase+n*fieldSize {
		return 0, errors.Newf(errors.ErrorTypeData, "stats row declares %d fields but holds %d bytes", n, len(payload))
	}
	off := fieldBase
	for i := 0; i < n; i++ {
		if payload[off] == id {
			return int64(binary.LittleEndian.Uint64(payload[off+1:])), nil
		}
		off += fieldSize
	}
	return 0, errors.Newf(errors.ErrorTypeData, "stats row has no field %d", id)
}

// RowCount extracts the row count field.
func (r Reader) RowCount(payload []byte) (int64, error) {
	return r.Field(payload, FieldRowCount)
}

// DeleteMask is the payload stored at the delete mask column index: a
// deletion count plus a row bitmap.
type DeleteMask struct {
	Deleted uint32
	Bitmap  []byte
}

// EncodeDeleteMask produces the delete mask payload bytes.
func EncodeDeleteMask(m DeleteMask) []byte {
	out := make([]byte, 8+len(m.Bitmap))
	binary.LittleEndian.PutUint32(out, uint32(DeleteMaskEncodingID))
	binary.LittleEndian.PutUint32(out[4:], m.Deleted)
	copy(out[8:], m.Bitmap)
	return out
}

// DecodeDeleteMask parses a delete mask payload.
func DecodeDeleteMask(payload []byte) (DeleteMask, error) {
	if len(payload) < 8 {
		return DeleteMask{}, errors.Newf(errors.ErrorTypeData, "delete mask truncated at %d bytes", len(payload))
	}
	if enc := int32(binary.LittleEndian.Uint32(payload)); enc != DeleteMaskEncodingID {
		return DeleteMask{}, errors.Newf(errors.ErrorTypeData, "not a delete mask (encoding id %d)", enc)
	}
	return DeleteMask{
		Deleted: binary.LittleEndian.Uint32(payload[4:]),
		Bitmap:  payload[8:],
	}, nil
}
