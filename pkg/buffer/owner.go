package buffer

import "sync/atomic"

// Owner identifies the accounting identity of an off-heap allocation.
// Every direct region is charged to exactly one owner at a time; transfers
// between owners move the charge atomically.
type Owner uint8

const (
	_ Owner = iota

	// OwnerStorage is buffer memory held by region entries.
	OwnerStorage
	// OwnerDecompress is transient codec scratch memory.
	OwnerDecompress
	// OwnerTransfer is memory held by values detached from an entry,
	// typically results returned to a reader without replacing the
	// stored buffer.
	OwnerTransfer

	numOwners
)

// String returns the owner tag name.
func (o Owner) String() string {
	switch o {
	case OwnerStorage:
		return "storage"
	case OwnerDecompress:
		return "decompress"
	case OwnerTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Metrics contains off-heap memory statistics by owner.
type Metrics [numOwners]struct {
	// InUseBytes is the total number of bytes currently allocated. This
	// is the sum of the capacities of live allocations and does not
	// include fragmentation.
	InUseBytes int64

	// TotalBytes is the cumulative number of bytes allocated since the
	// allocator was created.
	TotalBytes int64
}

type ownerCounters [numOwners]struct {
	totalAllocated atomic.Int64
	totalFreed     atomic.Int64
	// Pad to separate counters into cache lines. We assume a 64 byte
	// cache line, which is the case for AMD64 and ARM64 servers.
	_ [6]int64
}
