package colstore

import (
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/meridiandb/meridian/pkg/buffer"
	"github.com/meridiandb/meridian/pkg/codec"
	"github.com/meridiandb/meridian/pkg/errors"
	"github.com/meridiandb/meridian/pkg/logger"
	"github.com/meridiandb/meridian/pkg/stats"
)

// valueState is the compression state of a value's buffer.
//
//	notCompressible (-1): compression declined the payload; sticky until
//	    the next SetBuffer
//	compressed (0): the buffer holds codec output, leading int32 < 0
//	decompressed (n >= 1): the buffer holds the raw payload; n counts
//	    compression attempts absorbed since the last decompression
type valueState int8

const (
	stateNotCompressible valueState = -1
	stateCompressed      valueState = 0
)

// ColumnValue is the mutable container for one column batch cell. The
// instance mutex guards the buffer, codec id, state, disk location and
// region back-reference; the reference count is atomic and gates buffer
// access: readers retain before touching bytes and release on every
// exit. When the count reaches zero the buffer is dropped and a direct
// region is returned to its allocator.
type ColumnValue struct {
	kind  Kind
	alloc *buffer.Allocator

	mu        sync.Mutex
	buf       *buffer.BufferRef
	codecID   codec.ID
	st        valueState
	fromDisk  bool
	diskID    DiskID
	regionCtx RegionContext

	refs atomic.Int32
}

// New creates an empty value of the given kind. A nil allocator uses the
// process default. The creator holds the initial reference.
func New(kind Kind, alloc *buffer.Allocator) *ColumnValue {
	if alloc == nil {
		alloc = buffer.Default
	}
	v := &ColumnValue{
		kind:  kind,
		alloc: alloc,
		st:    stateNotCompressible,
	}
	v.refs.Store(1)
	return v
}

// NewValue creates an empty full column cell.
func NewValue(alloc *buffer.Allocator) *ColumnValue {
	return New(KindValue, alloc)
}

// NewDelta creates an empty column delta cell.
func NewDelta(alloc *buffer.Allocator) *ColumnValue {
	return New(KindDelta, alloc)
}

// NewDeleteDelta creates an empty delete mask delta cell.
func NewDeleteDelta(alloc *buffer.Allocator) *ColumnValue {
	return New(KindDeleteDelta, alloc)
}

// Kind returns the value kind.
func (v *ColumnValue) Kind() Kind {
	return v.kind
}

// SetBuffer installs a freshly produced buffer. The value must hold
// exactly its initial reference; concurrent readers make an in-place
// swap unsound. When transferOwnership is set the buffer's accounting
// moves into the storage owner of the value's allocator.
func (v *ColumnValue) SetBuffer(buf *buffer.BufferRef, id codec.ID, isCompressed, transferOwnership bool) error {
	if n := v.refs.Load(); n != 1 {
		return errors.Newf(errors.ErrorTypeInvalidState, "set buffer with reference count %d", n)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.buf != nil && v.buf != buf {
		// Replacing a previous buffer; drop the container's reference to
		// it so a direct region frees now rather than leaking.
		v.buf.Release()
	}
	if buf == nil {
		v.buf = nil
		v.st = stateNotCompressible
		v.fromDisk = false
		return nil
	}
	if transferOwnership {
		buf.TransferTo(v.alloc, buffer.OwnerStorage)
	}
	v.buf = buf
	v.codecID = id
	if isCompressed {
		v.st = stateCompressed
	} else {
		v.st = 1
	}
	v.fromDisk = false
	return nil
}

// Retain atomically takes a reference if the value is still live.
// Returning false means the race with eviction was lost and the entry
// must be treated as absent.
func (v *ColumnValue) Retain() bool {
	for {
		n := v.refs.Load()
		if n <= 0 {
			return false
		}
		if v.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference. At zero the buffer is released: a direct
// region goes back to its allocator, a heap region is left for the
// garbage collector, and the state resets so a later recall starts
// clean.
func (v *ColumnValue) Release() {
	n := v.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		v.refs.Store(0)
		logger.Error("column value over-released", zap.Int32("refs", n))
		return
	}
	v.mu.Lock()
	v.releaseBufferLocked()
	v.mu.Unlock()
}

// Refs returns the current reference count.
func (v *ColumnValue) Refs() int32 {
	return v.refs.Load()
}

func (v *ColumnValue) releaseBufferLocked() {
	if v.buf == nil {
		return
	}
	old := v.buf
	v.buf = nil
	v.st = stateNotCompressible
	v.fromDisk = false
	old.Release()
}

// Payload returns the value's payload bytes, or nil when the buffer is
// absent. The caller must hold a reference for as long as it touches the
// returned slice.
func (v *ColumnValue) Payload() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.buf == nil {
		return nil
	}
	return v.buf.Bytes()
}

// Buffer returns the underlying buffer handle, or nil. Reading it
// without a prior successful Retain is undefined.
func (v *ColumnValue) Buffer() *buffer.BufferRef {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.buf
}

// CodecID returns the codec recorded for the value.
func (v *ColumnValue) CodecID() codec.ID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.codecID
}

// IsCompressed reports whether the stored form is compressed.
func (v *ColumnValue) IsCompressed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.st == stateCompressed
}

// FromDisk reports whether the current buffer was materialized from the
// overflow store.
func (v *ColumnValue) FromDisk() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fromDisk
}

// DiskLocation returns the persistent copy's handle, or nil.
func (v *ColumnValue) DiskLocation() DiskID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.diskID
}

// SetDiskLocation records the persistent copy written by the overflow
// store and, when a region context is supplied, adopts the region's
// declared codec. The call is idempotent.
func (v *ColumnValue) SetDiskLocation(id DiskID, ctx RegionContext) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id != nil {
		v.diskID = id
	}
	if ctx != nil {
		v.regionCtx = ctx
		if c := ctx.CodecID(); c != codec.None {
			v.codecID = c
		}
	}
}

// ClearRegionContext severs the back-reference to the region; called when
// the entry is replaced, removed or its region destroyed, so the relation
// never owns the region. Eviction keeps it, since recall needs it.
func (v *ColumnValue) ClearRegionContext() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.regionCtx = nil
}

// GetValueRetain returns the value with a reference taken for the
// caller, materializing the buffer from disk when it has been spilled,
// and optionally converting the form. Requesting both conversions is
// contradictory. The caller releases the result on every exit path; a
// result with a nil Payload means the entry is absent.
func (v *ColumnValue) GetValueRetain(decompress, compress bool) (*ColumnValue, error) {
	if decompress && compress {
		return nil, errors.New(errors.ErrorTypeBadArgument, "decompress and compress are mutually exclusive")
	}

	v.mu.Lock()
	if v.buf != nil && v.Retain() {
		v.mu.Unlock()
		return v.transform(decompress, compress)
	}
	diskID := v.diskID
	rctx := v.regionCtx
	v.mu.Unlock()

	if diskID == nil || rctx == nil {
		return v.retainAbsent(), nil
	}
	dr := rctx.DiskRegion()
	if dr == nil {
		return v.retainAbsent(), nil
	}

	dr.RLock()
	defer dr.RUnlock()
	diskID.Lock()
	defer diskID.Unlock()

	// Another recall may have restored the buffer while this one waited
	// on the disk id lock.
	v.mu.Lock()
	if v.buf != nil && v.Retain() {
		v.mu.Unlock()
		return v.transform(decompress, compress)
	}
	v.mu.Unlock()

	restored, err := dr.ReadColumn(diskID)
	if err != nil {
		if errors.IsEntryAbsent(err) {
			rctx.Stats().DiskRecallAbsent()
			logger.Debug("disk recall resolved to absent entry",
				zap.String("region", rctx.Name()), zap.String("disk_id", diskID.String()), zap.Error(err))
			return v.retainAbsent(), nil
		}
		return nil, err
	}
	if restored == nil {
		// Tombstone.
		rctx.Stats().DiskRecallAbsent()
		return v.retainAbsent(), nil
	}

	v.mu.Lock()
	v.buf = restored.buf
	v.st = restored.st
	v.codecID = restored.codecID
	v.fromDisk = true
	restored.buf = nil
	v.refs.Store(1)
	v.mu.Unlock()
	rctx.Stats().DiskRecall()

	return v.transform(decompress, compress)
}

// retainAbsent hands the caller a reference to the value in its absent
// form so release stays symmetric on every path.
func (v *ColumnValue) retainAbsent() *ColumnValue {
	v.refs.Add(1)
	return v
}

// transform applies the requested conversion to a value the caller has
// already retained. When the conversion produces a detached value the
// caller's reference on the original is released; on error the reference
// is released and the entry keeps its prior valid state.
func (v *ColumnValue) transform(decompress, compress bool) (*ColumnValue, error) {
	var out *ColumnValue
	var err error
	switch {
	case decompress:
		out, err = v.Decompress()
	case compress:
		out, err = v.Compress()
	default:
		return v, nil
	}
	if err != nil {
		v.Release()
		return nil, err
	}
	if out != v {
		v.Release()
	}
	return out, nil
}

// Decompress ensures the caller sees the decompressed form. When other
// readers still hold the compressed bytes of a direct buffer the stored
// form is left alone and a detached value carrying the decompressed
// buffer is returned instead. The caller must hold a reference.
func (v *ColumnValue) Decompress() (*ColumnValue, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.decompressLocked()
}

func (v *ColumnValue) decompressLocked() (*ColumnValue, error) {
	if v.buf == nil {
		return v, nil
	}
	if v.st != stateCompressed {
		if v.st > 1 {
			v.st = 1
		}
		return v, nil
	}

	b := v.buf.Bytes()
	if _, compressed := codec.PeekID(b); !compressed {
		// The recorded state says compressed but the payload leads with
		// a non-negative encoding id. Trust the bytes, but never mask
		// the disagreement silently.
		v.statsLocked().StateDisagreement()
		logger.Warn("compression state disagrees with payload, clamping to decompressed",
			zap.String("kind", v.kind.String()), zap.Int8("state", int8(v.st)))
		v.st = 1
		return v, nil
	}

	newRef, _, err := codec.Decompress(b, v.alloc, v.statsLocked())
	if err != nil {
		return nil, err
	}

	// Replace the stored buffer only when no other reader can be holding
	// the compressed bytes: heap buffers are safe to swap under GC, and
	// a direct buffer with at most the entry's own and the caller's
	// references has no third party.
	replace := !v.buf.IsDirect() || v.refs.Load() <= 2
	if !replace {
		return v.detachedLocked(newRef, 1), nil
	}

	newCap, oldCap := int64(newRef.Cap()), int64(v.buf.Cap())
	if v.accountingLocked() && !v.fromDisk {
		if err := v.regionCtx.Broker().Acquire(newCap - oldCap); err != nil {
			newRef.Release()
			return nil, err
		}
	}
	newRef.TransferTo(v.alloc, buffer.OwnerStorage)
	v.updateRegionMemoryLocked(newCap - oldCap)

	old := v.buf
	v.buf = newRef
	v.st = 1
	old.Release()
	return v, nil
}

// Compress attempts to move the value to its compressed form. The stored
// buffer is only replaced after the decompression counter exceeds
// MaxConsecutiveCompressions and no other reader holds a direct buffer;
// otherwise the counter advances and a detached value carrying the
// compressed bytes is returned. A codec that fails to shrink the payload
// marks the value not-compressible, which is sticky until the next
// SetBuffer. The caller must hold a reference.
func (v *ColumnValue) Compress() (*ColumnValue, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.compressLocked()
}

func (v *ColumnValue) compressLocked() (*ColumnValue, error) {
	if v.buf == nil || v.st <= stateCompressed {
		return v, nil
	}
	if v.codecID == codec.None {
		return v, nil
	}

	minRatio := 0.0
	if v.regionCtx != nil {
		minRatio = v.regionCtx.MinCompressionRatio()
	}
	out, shrunk, err := codec.Compress(v.codecID, v.buf.Bytes(), v.alloc, minRatio, v.statsLocked())
	if err != nil {
		return nil, err
	}
	if !shrunk {
		v.st = stateNotCompressible
		return v, nil
	}

	replace := int(v.st) > MaxConsecutiveCompressions &&
		(!v.buf.IsDirect() || v.refs.Load() <= 2)
	if !replace {
		if v.st < math.MaxInt8 {
			v.st++
		}
		return v.detachedLocked(out, stateCompressed), nil
	}

	if out.Cap()-out.Len() >= TrimThreshold {
		if trimmed, err := v.alloc.AllocateDirect(out.Len(), buffer.OwnerStorage); err == nil {
			if trimmed.Cap() < out.Cap() {
				copy(trimmed.Bytes(), out.Bytes())
				out.Release()
				out = trimmed
			} else {
				trimmed.Release()
			}
		}
	}
	if out.Owner() != buffer.OwnerStorage {
		out.TransferTo(v.alloc, buffer.OwnerStorage)
	}

	oldCap, newCap := int64(v.buf.Cap()), int64(out.Cap())
	freed := oldCap - newCap
	v.updateRegionMemoryLocked(-freed)

	old := v.buf
	v.buf = out
	v.st = stateCompressed
	old.Release()

	if v.accountingLocked() && !v.fromDisk && freed > 0 {
		v.regionCtx.Broker().Release(freed)
	}
	return v, nil
}

// detachedLocked wraps a scratch buffer in a transient value of the same
// kind, moving its accounting out of the codec scratch owner.
func (v *ColumnValue) detachedLocked(ref *buffer.BufferRef, st valueState) *ColumnValue {
	ref.TransferTo(v.alloc, buffer.OwnerTransfer)
	nv := &ColumnValue{
		kind:    v.kind,
		alloc:   v.alloc,
		buf:     ref,
		codecID: v.codecID,
		st:      st,
	}
	nv.refs.Store(1)
	return nv
}

func (v *ColumnValue) statsLocked() *stats.CachePerfStats {
	if v.regionCtx == nil {
		return nil
	}
	return v.regionCtx.Stats()
}

func (v *ColumnValue) accountingLocked() bool {
	return v.regionCtx != nil && v.regionCtx.AccountingEnabled() && v.regionCtx.Broker() != nil
}

func (v *ColumnValue) updateRegionMemoryLocked(delta int64) {
	if v.regionCtx == nil || delta == 0 {
		return
	}
	v.regionCtx.UpdateMemoryStats(delta)
	v.regionCtx.Stats().AddMemoryBytes(delta)
}

// SizeInBytes returns a synthetic size estimate covering the container,
// the buffer wrapper and the buffer capacity. The estimate is stable for
// a given logical state, independent of the reference count, and remains
// valid after the buffer has been released.
func (v *ColumnValue) SizeInBytes() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	size := int64(valueObjectOverhead)
	if v.buf != nil {
		size += bufferWrapperOverhead + int64(v.buf.Cap())
		if v.buf.IsDirect() {
			size += buffer.DirectObjectOverhead
		}
	}
	return size
}

// OffHeapSizeInBytes returns the off-heap footprint: the direct buffer
// capacity plus its bookkeeping overhead, or zero for heap and absent
// buffers.
func (v *ColumnValue) OffHeapSizeInBytes() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.buf == nil || !v.buf.IsDirect() {
		return 0
	}
	return int64(v.buf.Cap()) + buffer.DirectObjectOverhead
}
