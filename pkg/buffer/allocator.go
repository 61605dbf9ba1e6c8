// Package buffer provides reference-counted byte buffers for the column
// storage layer, backed either by the Go heap or by anonymous memory
// mappings outside the garbage-collected heap ("direct" buffers).
//
// Direct buffers carry an Owner tag identifying who is charged for the
// memory; the Allocator keeps per-owner accounting so storage, codec
// scratch, and detached-transfer memory can be observed independently.
// Release of a direct region is deterministic and happens exactly once,
// when the reference count reaches zero.
package buffer

import (
	"os"

	"github.com/meridiandb/meridian/pkg/errors"
)

// Allocator hands out heap and direct buffers and tracks direct memory
// by owner tag. The zero value is not usable; use NewAllocator or the
// process-wide Default allocator.
type Allocator struct {
	counters *ownerCounters
	pageSize int
}

// Default is the process-wide allocator. Components that do not need
// isolated accounting (tests mostly do) share it.
var Default = NewAllocator()

// NewAllocator creates an allocator with its own accounting counters.
func NewAllocator() *Allocator {
	return &Allocator{
		counters: &ownerCounters{},
		pageSize: os.Getpagesize(),
	}
}

// AllocateDirect maps an anonymous region of at least n bytes charged to
// the given owner. The returned buffer has length n and page-rounded
// capacity, and a reference count of 1.
func (a *Allocator) AllocateDirect(n int, owner Owner) (*BufferRef, error) {
	if n <= 0 {
		return nil, errors.Newf(errors.ErrorTypeBadArgument, "direct allocation of %d bytes", n)
	}
	size := a.roundUp(n)
	b, err := anonMmap(size)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeLowMemory, "anonymous mmap failed")
	}
	a.account(owner, int64(size), 0)
	r := &BufferRef{
		buf:    b,
		length: n,
		direct: true,
		owner:  owner,
		alloc:  a,
	}
	r.refs.Store(1)
	return r, nil
}

// AllocateHeap returns a heap-backed buffer of length n with a reference
// count of 1. Heap buffers are reclaimed by the garbage collector and are
// not charged to any owner.
func (a *Allocator) AllocateHeap(n int) *BufferRef {
	r := &BufferRef{
		buf:   make([]byte, n),
		length: n,
		alloc: a,
	}
	r.refs.Store(1)
	return r
}

// WrapHeap wraps an existing heap slice in a reference-counted handle
// without copying. The caller must not retain its own alias of b.
func (a *Allocator) WrapHeap(b []byte) *BufferRef {
	r := &BufferRef{
		buf:    b,
		length: len(b),
		alloc:  a,
	}
	r.refs.Store(1)
	return r
}

// Metrics returns direct memory usage statistics by owner.
func (a *Allocator) Metrics() Metrics {
	var res Metrics
	for i := range res {
		res[i].TotalBytes = a.counters[i].totalAllocated.Load()
		res[i].InUseBytes = res[i].TotalBytes - a.counters[i].totalFreed.Load()
	}
	return res
}

func (a *Allocator) account(owner Owner, allocated, freed int64) {
	if owner == 0 || owner >= numOwners {
		return
	}
	if allocated != 0 {
		a.counters[owner].totalAllocated.Add(allocated)
	}
	if freed != 0 {
		a.counters[owner].totalFreed.Add(freed)
	}
}

func (a *Allocator) roundUp(n int) int {
	return (n + a.pageSize - 1) &^ (a.pageSize - 1)
}
