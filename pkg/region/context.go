package region

import (
	"sync/atomic"

	"github.com/meridiandb/meridian/pkg/codec"
	"github.com/meridiandb/meridian/pkg/colstore"
	"github.com/meridiandb/meridian/pkg/config"
	"github.com/meridiandb/meridian/pkg/memory"
	"github.com/meridiandb/meridian/pkg/stats"
)

// Context is the concrete region back-reference handed to column values
// for statistics and memory accounting. Values hold it non-owningly; the
// store clears their back-references on replacement, removal and
// teardown, and keeps them across eviction so spilled values can recall.
type Context struct {
	name       string
	codecID    codec.ID
	perf       *stats.CachePerfStats
	broker     memory.Broker
	accounting bool
	minRatio   float64

	disk     atomic.Pointer[DiskRegion]
	memBytes atomic.Int64
}

var _ colstore.RegionContext = (*Context)(nil)

// NewContext creates a region context. A nil broker disables accounting
// regardless of the accounting flag.
func NewContext(name string, codecID codec.ID, broker memory.Broker, accounting bool) *Context {
	return &Context{
		name:       name,
		codecID:    codecID,
		perf:       stats.NewCachePerfStats(name),
		broker:     broker,
		accounting: accounting,
	}
}

// NewContextFromConfig creates a region context from a validated store
// configuration.
func NewContextFromConfig(cfg *config.StoreConfig, broker memory.Broker) *Context {
	ctx := NewContext(cfg.Name, cfg.CodecID(), broker, cfg.Memory.AccountingEnabled)
	ctx.minRatio = cfg.Compression.MinRatio
	return ctx
}

// Name implements colstore.RegionContext.
func (c *Context) Name() string {
	return c.name
}

// CodecID implements colstore.RegionContext.
func (c *Context) CodecID() codec.ID {
	return c.codecID
}

// Stats implements colstore.RegionContext.
func (c *Context) Stats() *stats.CachePerfStats {
	return c.perf
}

// Broker implements colstore.RegionContext.
func (c *Context) Broker() memory.Broker {
	return c.broker
}

// AccountingEnabled implements colstore.RegionContext.
func (c *Context) AccountingEnabled() bool {
	return c.accounting && c.broker != nil
}

// MinCompressionRatio implements colstore.RegionContext.
func (c *Context) MinCompressionRatio() float64 {
	return c.minRatio
}

// DiskRegion implements colstore.RegionContext.
func (c *Context) DiskRegion() colstore.DiskRegion {
	if dr := c.disk.Load(); dr != nil {
		return dr
	}
	return nil
}

// SetDiskRegion attaches the overflow-backed disk layer.
func (c *Context) SetDiskRegion(dr *DiskRegion) {
	c.disk.Store(dr)
}

// UpdateMemoryStats implements colstore.RegionContext.
func (c *Context) UpdateMemoryStats(delta int64) {
	c.memBytes.Add(delta)
}

// MemoryBytes returns the region's current buffer memory estimate.
func (c *Context) MemoryBytes() int64 {
	return c.memBytes.Load()
}
