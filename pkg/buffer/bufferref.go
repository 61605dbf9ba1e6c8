package buffer

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/meridiandb/meridian/pkg/logger"
)

// DirectObjectOverhead is the per-buffer bookkeeping charged against a
// direct allocation over and above its capacity: the handle itself plus
// the allocator's cleaner state.
const DirectObjectOverhead = 64

// BufferRef is a reference-counted handle to one contiguous byte region.
// A ref starts life with count 1 held by its creator. Readers call Retain
// before touching Bytes and Release on every exit path; the backing
// direct memory is returned to the allocator exactly once, when the count
// reaches zero. Heap-backed refs simply become garbage at zero.
type BufferRef struct {
	buf    []byte
	length int
	direct bool
	owner  Owner
	alloc  *Allocator
	refs   atomic.Int32
	freed  atomic.Bool
}

// Retain atomically increments the reference count if it is still
// positive. It returns false when the ref has already been released; the
// race is ordinary during eviction and callers must treat the buffer as
// absent rather than fail.
func (r *BufferRef) Retain() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release decrements the reference count. When the count reaches zero a
// direct region is unmapped and its owner uncharged; heap regions are
// left to the garbage collector.
func (r *BufferRef) Release() {
	n := r.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		// A release without a matching retain. Pin the count at zero so
		// the fault does not cascade.
		r.refs.Store(0)
		logger.Error("buffer over-released", zap.Int32("refs", n))
		return
	}
	r.free()
}

// Refs returns the current reference count.
func (r *BufferRef) Refs() int32 {
	return r.refs.Load()
}

// Bytes returns the payload view. The caller must hold a retain for the
// whole time it touches the returned slice.
func (r *BufferRef) Bytes() []byte {
	if r.buf == nil {
		return nil
	}
	return r.buf[:r.length]
}

// Dup returns an independent read view over the same bytes, starting at
// position zero. The view shares storage with the ref; the caller's
// retain must outlive it.
func (r *BufferRef) Dup() []byte {
	return r.Bytes()
}

// Len returns the payload length in bytes.
func (r *BufferRef) Len() int {
	return r.length
}

// Cap returns the usable capacity of the backing region. For direct
// buffers this is the page-rounded mapping size.
func (r *BufferRef) Cap() int {
	if r.buf == nil {
		return 0
	}
	return cap(r.buf)
}

// IsDirect reports whether the region lives outside the Go heap.
func (r *BufferRef) IsDirect() bool {
	return r.direct
}

// Owner returns the accounting owner of a direct region.
func (r *BufferRef) Owner() Owner {
	return r.owner
}

// Allocator returns the allocator the region is charged to.
func (r *BufferRef) Allocator() *Allocator {
	return r.alloc
}

// TransferTo moves the backing storage's accounting to another allocator
// and owner tag, e.g. from the codec scratch pool into storage. The bytes
// themselves do not move. Heap buffers only change their tag.
func (r *BufferRef) TransferTo(a *Allocator, owner Owner) {
	if r.direct {
		size := int64(cap(r.buf))
		r.alloc.account(r.owner, 0, size)
		a.account(owner, size, 0)
	}
	r.alloc = a
	r.owner = owner
}

func (r *BufferRef) free() {
	if !r.direct {
		r.buf = nil
		return
	}
	if !r.freed.CompareAndSwap(false, true) {
		return
	}
	b := r.buf
	r.buf = nil
	r.alloc.account(r.owner, 0, int64(cap(b)))
	if err := munmap(b); err != nil {
		logger.Error("munmap failed", zap.Error(err), zap.Int("cap", cap(b)))
	}
}
