package colstore

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/meridiandb/meridian/pkg/errors"
)

// EncodedKeyLen is the serialized key size: u64 uuid, i32 partition,
// i32 column index, all big-endian.
const EncodedKeyLen = 16

// ColumnKey identifies one column batch cell: the storage for one column
// of one row batch in one partition. It is an immutable value type.
type ColumnKey struct {
	// UUID identifies the row batch across the cluster
	UUID uint64
	// PartitionID identifies the partition bucket
	PartitionID int32
	// ColumnIndex selects a data column; negative values are reserved
	// for the stats row, delta stats row and delete mask cells
	ColumnIndex int32
}

// Hash returns the key's hash code. It depends only on the uuid and the
// partition id, never on the column index, so every column of one batch
// lands in the same hash neighborhood and an iterator walking a batch
// stays colocated.
func (k ColumnKey) Hash() uint64 {
	var b [12]byte
	binary.BigEndian.PutUint64(b[:], k.UUID)
	binary.BigEndian.PutUint32(b[8:], uint32(k.PartitionID))
	return xxhash.Sum64(b[:])
}

// Equal reports componentwise equality.
func (k ColumnKey) Equal(o ColumnKey) bool {
	return k == o
}

// WithColumnIndex returns a key for another column of the same batch.
func (k ColumnKey) WithColumnIndex(i int32) ColumnKey {
	return ColumnKey{UUID: k.UUID, PartitionID: k.PartitionID, ColumnIndex: i}
}

// RoutingObject returns the partition routing object for the key.
func (k ColumnKey) RoutingObject() int32 {
	return k.PartitionID
}

// AppendTo appends the 16-byte serialized form to dst.
func (k ColumnKey) AppendTo(dst []byte) []byte {
	var b [EncodedKeyLen]byte
	binary.BigEndian.PutUint64(b[:], k.UUID)
	binary.BigEndian.PutUint32(b[8:], uint32(k.PartitionID))
	binary.BigEndian.PutUint32(b[12:], uint32(k.ColumnIndex))
	return append(dst, b[:]...)
}

// Encode returns the 16-byte serialized form.
func (k ColumnKey) Encode() []byte {
	return k.AppendTo(make([]byte, 0, EncodedKeyLen))
}

// DecodeKey parses a serialized key.
func DecodeKey(b []byte) (ColumnKey, error) {
	if len(b) < EncodedKeyLen {
		return ColumnKey{}, errors.Newf(errors.ErrorTypeData, "column key truncated at %d bytes", len(b))
	}
	return ColumnKey{
		UUID:        binary.BigEndian.Uint64(b),
		PartitionID: int32(binary.BigEndian.Uint32(b[8:])),
		ColumnIndex: int32(binary.BigEndian.Uint32(b[12:])),
	}, nil
}

// String formats the key for logs.
func (k ColumnKey) String() string {
	return fmt.Sprintf("col[uuid=%d part=%d idx=%d]", k.UUID, k.PartitionID, k.ColumnIndex)
}
