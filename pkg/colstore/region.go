package colstore

import (
	"github.com/meridiandb/meridian/pkg/codec"
	"github.com/meridiandb/meridian/pkg/memory"
	"github.com/meridiandb/meridian/pkg/stats"
)

// DiskID is a handle to the persistent copy of a spilled value. Its lock
// serializes recalls of the same id; it is the second lock in the recall
// ordering, after the disk region read lock and before the value's own
// mutex.
type DiskID interface {
	Lock()
	Unlock()
	String() string
}

// DiskRegion is the slice of the region engine's disk layer that recall
// needs: a read lock held across the recall, and the read primitive.
// ReadColumn returns a transient value whose buffer and state the caller
// adopts; a nil value without error is a tombstone.
type DiskRegion interface {
	RLock()
	RUnlock()
	ReadColumn(id DiskID) (*ColumnValue, error)
}

// RegionContext is the value's non-owning back-reference to its region,
// used for statistics and memory accounting. The region clears the
// back-reference when the entry is replaced, removed or the region is
// destroyed; every method must tolerate staleness.
type RegionContext interface {
	// Name returns the region name for logs
	Name() string

	// CodecID returns the compression codec the region declares, or
	// codec.None
	CodecID() codec.ID

	// Stats returns the region's perf stats block; may be nil
	Stats() *stats.CachePerfStats

	// Broker returns the storage memory broker; may be nil
	Broker() memory.Broker

	// AccountingEnabled reports whether buffer replacements must acquire
	// and release storage memory through the broker
	AccountingEnabled() bool

	// MinCompressionRatio is the fraction of the input size codec output
	// must beat to be kept; 0 uses the codec default
	MinCompressionRatio() float64

	// DiskRegion returns the disk layer for spill recall; may be nil
	DiskRegion() DiskRegion

	// UpdateMemoryStats adjusts the region's buffer memory gauge
	UpdateMemoryStats(delta int64)
}
