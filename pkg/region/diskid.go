package region

import (
	"fmt"
	"sync"
)

// DiskID locates the persistent copy of one spilled value inside the
// overflow store. Its mutex serializes recalls of the same id; in the
// recall lock ordering it sits between the disk region read lock and the
// value's own mutex.
type DiskID struct {
	mu sync.Mutex

	// Segment is the overflow segment file id
	Segment uint32
	// Offset is the record start within the segment
	Offset int64
	// Length is the payload length in bytes
	Length uint32
}

// Lock acquires the recall lock for this id.
func (d *DiskID) Lock() {
	d.mu.Lock()
}

// Unlock releases the recall lock.
func (d *DiskID) Unlock() {
	d.mu.Unlock()
}

// String formats the id for logs.
func (d *DiskID) String() string {
	return fmt.Sprintf("ovf[%d:%d+%d]", d.Segment, d.Offset, d.Length)
}
