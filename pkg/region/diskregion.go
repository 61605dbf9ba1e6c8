package region

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meridiandb/meridian/pkg/buffer"
	"github.com/meridiandb/meridian/pkg/colstore"
	"github.com/meridiandb/meridian/pkg/errors"
	"github.com/meridiandb/meridian/pkg/observability"
)

// DiskRegion is the overflow-backed disk layer of one region. Its read
// lock is the outermost lock of the recall ordering; Destroy takes the
// write side so teardown waits for in-flight recalls.
type DiskRegion struct {
	mu        sync.RWMutex
	overflow  *OverflowStore
	alloc     *buffer.Allocator
	destroyed atomic.Bool
}

var _ colstore.DiskRegion = (*DiskRegion)(nil)

// NewDiskRegion wraps an overflow store. A nil allocator uses the
// process default.
func NewDiskRegion(overflow *OverflowStore, alloc *buffer.Allocator) *DiskRegion {
	if alloc == nil {
		alloc = buffer.Default
	}
	return &DiskRegion{overflow: overflow, alloc: alloc}
}

// RLock implements colstore.DiskRegion.
func (d *DiskRegion) RLock() {
	d.mu.RLock()
}

// RUnlock implements colstore.DiskRegion.
func (d *DiskRegion) RUnlock() {
	d.mu.RUnlock()
}

// ReadColumn implements colstore.DiskRegion: it materializes the spilled
// payload into a transient value whose buffer the caller adopts. A
// tombstone returns nil without error.
func (d *DiskRegion) ReadColumn(id colstore.DiskID) (*colstore.ColumnValue, error) {
	if d.destroyed.Load() {
		return nil, errors.New(errors.ErrorTypeRegionDestroyed, "disk region destroyed")
	}
	did, ok := id.(*DiskID)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeBadArgument, "foreign disk id %T", id)
	}

	_, span := observability.StartSpan(context.Background(), "colstore.recall",
		attribute.String("disk_id", did.String()))
	defer span.End()

	kind, payload, err := d.overflow.Read(did)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	v := colstore.New(kind, d.alloc)
	if err := v.FromData(payload); err != nil {
		return nil, err
	}
	return v, nil
}

// Destroy tears the disk layer down. In-flight recalls finish first;
// later ones see region_destroyed, which readers recover as absence.
func (d *DiskRegion) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed.Store(true)
	return d.overflow.Close()
}
