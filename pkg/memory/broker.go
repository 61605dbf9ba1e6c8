// Package memory provides the storage memory broker: the accounting
// authority that grants and reclaims logical storage memory for column
// buffers. Grants may be denied under pressure, in which case callers
// abort whatever buffer replacement they were attempting and fall back to
// the form they already hold.
package memory

import (
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/meridiandb/meridian/pkg/errors"
	"github.com/meridiandb/meridian/pkg/logger"
)

// Broker grants and releases logical storage memory. Implementations are
// safe for concurrent use.
type Broker interface {
	// Acquire requests n bytes of storage memory. A negative n is a
	// no-op. Returns a low_memory error when the grant is denied.
	Acquire(n int64) error

	// Release returns n previously acquired bytes.
	Release(n int64)

	// Used reports the currently granted bytes.
	Used() int64

	// Limit reports the grant ceiling.
	Limit() int64
}

// EvictionHook is invoked once when an acquisition first pushes usage
// past the pressure threshold, giving the region engine a chance to
// evict cold entries before grants start failing. The hook runs on the
// acquiring goroutine; it must hand eviction work off rather than
// synchronously touch the entry whose grant triggered it.
type EvictionHook func(needed int64)

// AccountingBroker is the default Broker: a limit with an atomic usage
// counter. It never blocks; a grant either fits under the limit or is
// denied.
type AccountingBroker struct {
	limit         int64
	used          atomic.Int64
	pressurePoint int64
	hook          EvictionHook
	hooked        atomic.Bool
}

// DefaultLimitFraction is the fraction of total system memory used when
// no explicit limit is configured.
const DefaultLimitFraction = 0.25

// NewAccountingBroker creates a broker with the given byte limit. A
// non-positive limit derives one from total system memory.
func NewAccountingBroker(limit int64, hook EvictionHook) *AccountingBroker {
	if limit <= 0 {
		limit = defaultLimit()
	}
	return &AccountingBroker{
		limit:         limit,
		pressurePoint: limit - limit/8,
		hook:          hook,
	}
}

func defaultLimit() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn("cannot read system memory, using 1GiB storage limit", zap.Error(err))
		return 1 << 30
	}
	return int64(float64(vm.Total) * DefaultLimitFraction)
}

// Acquire implements Broker.
func (b *AccountingBroker) Acquire(n int64) error {
	if n <= 0 {
		return nil
	}
	for {
		used := b.used.Load()
		if used+n > b.limit {
			b.fireHook(used + n - b.limit)
			return errors.Newf(errors.ErrorTypeLowMemory,
				"storage memory grant of %d bytes denied (%d of %d in use)", n, used, b.limit)
		}
		if b.used.CompareAndSwap(used, used+n) {
			if used+n > b.pressurePoint {
				b.fireHook(0)
			}
			return nil
		}
	}
}

// Release implements Broker.
func (b *AccountingBroker) Release(n int64) {
	if n <= 0 {
		return
	}
	if after := b.used.Add(-n); after < 0 {
		// Matched release bookkeeping went wrong somewhere; clamp rather
		// than let the counter wedge future grants open.
		b.used.Store(0)
		logger.Error("storage memory released below zero", zap.Int64("after", after))
	} else if after <= b.pressurePoint {
		b.hooked.Store(false)
	}
}

// Used implements Broker.
func (b *AccountingBroker) Used() int64 {
	return b.used.Load()
}

// Limit implements Broker.
func (b *AccountingBroker) Limit() int64 {
	return b.limit
}

func (b *AccountingBroker) fireHook(needed int64) {
	if b.hook == nil {
		return
	}
	if b.hooked.CompareAndSwap(false, true) {
		b.hook(needed)
	}
}

// DenyingBroker denies every acquisition. It exists for tests exercising
// low-memory paths and for draining regions during shutdown.
type DenyingBroker struct{}

// Acquire implements Broker.
func (DenyingBroker) Acquire(n int64) error {
	if n <= 0 {
		return nil
	}
	return errors.New(errors.ErrorTypeLowMemory, "storage memory unavailable")
}

// Release implements Broker.
func (DenyingBroker) Release(int64) {}

// Used implements Broker.
func (DenyingBroker) Used() int64 { return 0 }

// Limit implements Broker.
func (DenyingBroker) Limit() int64 { return 0 }
