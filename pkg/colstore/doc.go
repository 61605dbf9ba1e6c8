// Package colstore implements the column-format storage entry: the unit
// of columnar data holding one column of one row batch of one partition,
// addressed by a composite key and stored as a single binary value.
//
// # Overview
//
// The package provides:
//   - ColumnKey, the immutable (uuid, partition, column) identifier with
//     partition-affine hashing so all columns of a batch colocate
//   - ColumnValue, a reference-counted container over an off-heap or
//     heap buffer with on-demand compression and decompression
//   - Transparent disk-spill recall: an evicted value re-materializes
//     its buffer from the overflow store on the next retained read
//   - A header-embedded wire format that lets a value stream directly
//     to sockets or the oplog without copies
//
// # Buffer Discipline
//
// Readers retain before touching bytes and release on every exit path:
//
//	v, err := entry.GetValueRetain(true, false)
//	if err != nil {
//	    return err
//	}
//	defer v.Release()
//	process(v.Payload())
//
// # Compression State
//
// A value is not-compressible, compressed, or decompressed-n, where n
// counts compression attempts since the last decompression. Replacing a
// decompressed buffer with its compressed form requires n to exceed
// MaxConsecutiveCompressions, which keeps hot entries from thrashing
// between forms on every read/evict cycle.
package colstore
