// Package region provides the bucketed region engine surrounding column
// storage entries: an in-memory keyed store with partition bucket
// enumeration, eviction to an append-only overflow store, and the
// transparent recall path values use to re-materialize spilled buffers.
package region

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/meridiandb/meridian/pkg/buffer"
	"github.com/meridiandb/meridian/pkg/colstore"
	"github.com/meridiandb/meridian/pkg/errors"
	"github.com/meridiandb/meridian/pkg/logger"
	"github.com/meridiandb/meridian/pkg/observability"
	"github.com/meridiandb/meridian/pkg/statsrow"
)

const shardCount = 16

type shard struct {
	mu      sync.RWMutex
	entries map[colstore.ColumnKey]*colstore.ColumnValue
}

// Store is a minimal region engine over column storage entries. Puts are
// linearized per key by the shard lock; gets hand out retained values;
// eviction spills the buffer to the overflow store and releases the
// in-memory copy, leaving an absent entry that recalls on demand.
type Store struct {
	name   string
	ctx    *Context
	disk   *DiskRegion
	alloc  *buffer.Allocator
	shards [shardCount]shard
}

// NewStore creates a region store. The disk region may be nil for pure
// in-memory regions; eviction then drops buffers irrecoverably.
func NewStore(name string, ctx *Context, disk *DiskRegion, alloc *buffer.Allocator) *Store {
	if alloc == nil {
		alloc = buffer.Default
	}
	if disk != nil {
		ctx.SetDiskRegion(disk)
	}
	s := &Store{name: name, ctx: ctx, disk: disk, alloc: alloc}
	for i := range s.shards {
		s.shards[i].entries = make(map[colstore.ColumnKey]*colstore.ColumnValue)
	}
	return s
}

func (s *Store) shardFor(key colstore.ColumnKey) *shard {
	return &s.shards[key.Hash()%shardCount]
}

// Put installs a value under key, replacing and releasing any previous
// entry. The value picks up the region back-reference for stats and
// accounting; the store keeps the producer's reference as the entry's
// resident reference.
func (s *Store) Put(key colstore.ColumnKey, v *colstore.ColumnValue) error {
	if v == nil {
		return errors.New(errors.ErrorTypeBadArgument, "nil value")
	}
	v.SetDiskLocation(nil, s.ctx)
	s.ctx.UpdateMemoryStats(v.SizeInBytes())

	sh := s.shardFor(key)
	sh.mu.Lock()
	prev := sh.entries[key]
	sh.entries[key] = v
	sh.mu.Unlock()

	if prev != nil {
		s.ctx.UpdateMemoryStats(-prev.SizeInBytes())
		prev.ClearRegionContext()
		prev.Release()
	}
	return nil
}

// GetRetain returns the value under key with a reference taken for the
// caller, recalling a spilled buffer from disk when needed. A nil value
// means no entry; a value with nil Payload means the entry is absent.
func (s *Store) GetRetain(key colstore.ColumnKey, decompress bool) (*colstore.ColumnValue, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	v := sh.entries[key]
	sh.mu.RUnlock()
	if v == nil {
		return nil, nil
	}
	return v.GetValueRetain(decompress, false)
}

// BucketKeys enumerates the keys of one partition bucket.
func (s *Store) BucketKeys(partitionID int32) []colstore.ColumnKey {
	var keys []colstore.ColumnKey
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k := range sh.entries {
			if k.PartitionID == partitionID {
				keys = append(keys, k)
			}
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Len returns the number of entries across all buckets.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Evict spills the entry's buffer to the overflow store and releases the
// resident reference. The entry itself stays keyed so a later read can
// recall it; without a disk region the buffer is simply dropped.
func (s *Store) Evict(key colstore.ColumnKey) error {
	sh := s.shardFor(key)
	sh.mu.RLock()
	v := sh.entries[key]
	sh.mu.RUnlock()
	if v == nil {
		return nil
	}

	if s.disk == nil {
		v.Release()
		return nil
	}

	_, span := observability.StartSpan(context.Background(), "colstore.spill",
		attribute.String("region", s.name), attribute.String("key", key.String()))
	defer span.End()

	got, err := v.GetValueRetain(false, true)
	if err != nil {
		return err
	}
	payload := got.Payload()
	if payload == nil {
		// Already spilled or never populated; nothing to write.
		got.Release()
		return nil
	}
	id, err := s.disk.overflow.Append(got.Kind(), payload)
	got.Release()
	if err != nil {
		return err
	}

	v.SetDiskLocation(id, s.ctx)
	s.ctx.UpdateMemoryStats(-v.SizeInBytes())
	v.Release()

	logger.Debug("column entry evicted",
		zap.String("region", s.name), zap.String("key", key.String()), zap.String("disk_id", id.String()))
	return nil
}

// BatchRowCount reads the row count from a batch's stats row cell,
// recalling it from disk if spilled.
func (s *Store) BatchRowCount(uuid uint64, partitionID int32) (int64, error) {
	key := colstore.ColumnKey{UUID: uuid, PartitionID: partitionID, ColumnIndex: colstore.StatsRowColumnIndex}
	v, err := s.GetRetain(key, true)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, errors.Newf(errors.ErrorTypeEntryAbsent, "no stats row for batch %d/%d", uuid, partitionID)
	}
	defer v.Release()

	payload := v.Payload()
	if payload == nil {
		return 0, errors.Newf(errors.ErrorTypeEntryAbsent, "stats row for batch %d/%d is absent", uuid, partitionID)
	}
	var r statsrow.Reader
	return r.RowCount(payload)
}

// Remove deletes the entry outright, releasing the resident reference.
func (s *Store) Remove(key colstore.ColumnKey) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	v := sh.entries[key]
	delete(sh.entries, key)
	sh.mu.Unlock()
	if v != nil {
		s.ctx.UpdateMemoryStats(-v.SizeInBytes())
		v.ClearRegionContext()
		v.Release()
	}
}

// Destroy tears the region down: entries are dropped, back-references
// cleared, and the disk layer destroyed so in-flight recalls resolve to
// absence.
func (s *Store) Destroy() error {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, v := range sh.entries {
			delete(sh.entries, k)
			v.ClearRegionContext()
			v.Release()
		}
		sh.mu.Unlock()
	}
	if s.disk != nil {
		return s.disk.Destroy()
	}
	return nil
}
