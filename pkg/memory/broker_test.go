package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiandb/meridian/pkg/errors"
)

func TestAcquireRelease(t *testing.T) {
	b := NewAccountingBroker(1000, nil)
	assert.Equal(t, int64(1000), b.Limit())

	require.NoError(t, b.Acquire(400))
	require.NoError(t, b.Acquire(600))
	assert.Equal(t, int64(1000), b.Used())

	err := b.Acquire(1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLowMemory))

	b.Release(600)
	require.NoError(t, b.Acquire(100))
	assert.Equal(t, int64(500), b.Used())

	// Non-positive sizes are no-ops on both sides.
	require.NoError(t, b.Acquire(0))
	require.NoError(t, b.Acquire(-10))
	b.Release(0)
	assert.Equal(t, int64(500), b.Used())
}

func TestReleaseBelowZeroClamps(t *testing.T) {
	b := NewAccountingBroker(100, nil)
	b.Release(50)
	assert.Equal(t, int64(0), b.Used())
	require.NoError(t, b.Acquire(100))
}

func TestEvictionHookFiresOncePerPressureEpisode(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	b := NewAccountingBroker(1000, func(needed int64) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	// Crossing the pressure point fires the hook once.
	require.NoError(t, b.Acquire(900))
	require.NoError(t, b.Acquire(50))
	assert.Equal(t, 1, calls)

	// Back below pressure re-arms it.
	b.Release(500)
	require.NoError(t, b.Acquire(500))
	assert.Equal(t, 2, calls)
}

func TestConcurrentAcquire(t *testing.T) {
	b := NewAccountingBroker(8000, nil)
	var wg sync.WaitGroup
	granted := make([]int, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if b.Acquire(1) == nil {
					granted[slot]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range granted {
		total += n
	}
	assert.Equal(t, int64(total), b.Used())
	assert.LessOrEqual(t, b.Used(), b.Limit())
}

func TestDefaultLimitFromSystemMemory(t *testing.T) {
	b := NewAccountingBroker(0, nil)
	assert.Positive(t, b.Limit())
}

func TestDenyingBroker(t *testing.T) {
	var b DenyingBroker
	err := b.Acquire(1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLowMemory))
	require.NoError(t, b.Acquire(0))
	b.Release(10)
	assert.Zero(t, b.Used())
}
