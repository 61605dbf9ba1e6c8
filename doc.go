// Package meridian provides the column-format storage subsystem of the
// Meridian distributed in-memory SQL store: reference-counted columnar
// values with on-demand compression, transparent disk spill and recall,
// and a zero-copy wire format.
//
// # Architecture
//
// The subsystem is built on four principles:
//
// 1. Deterministic Memory: column buffers live outside the garbage
// collected heap behind explicit reference counts, so eviction releases
// memory the moment the last reader leaves.
//
// 2. Lazy Form Conversion: values move between compressed and
// decompressed forms only when a reader asks, with hysteresis that keeps
// hot entries from thrashing between forms.
//
// 3. Colocated Batches: every column of a row batch hashes to the same
// partition neighborhood, so batch scans never cross members.
//
// 4. Header-Embedded Serialization: a value writes its own framing
// header and streams its buffer directly to sockets and the oplog.
//
// # Package Layout
//
//   - pkg/colstore: keys, values, serialization, partition routing
//   - pkg/buffer: reference-counted heap and off-heap buffers
//   - pkg/codec: compression codecs and the payload codec registry
//   - pkg/memory: the storage memory broker
//   - pkg/region: region engine contracts, overflow store, recall
//   - pkg/statsrow: stats row and delete mask payloads
//
// # Quick Start
//
//	alloc := buffer.NewAllocator()
//	v := colstore.NewValue(alloc)
//	ref := alloc.WrapHeap(payload)
//	if err := v.SetBuffer(ref, codec.Snappy, false, false); err != nil {
//	    return err
//	}
//
//	got, err := v.GetValueRetain(true, false)
//	if err != nil {
//	    return err
//	}
//	defer got.Release()
//	process(got.Payload())
package meridian
