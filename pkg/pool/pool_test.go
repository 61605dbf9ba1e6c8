package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	n     int
	reset bool
}

func TestTypedPool(t *testing.T) {
	p := New(
		func() *widget { return &widget{} },
		func(w *widget) { w.n = 0; w.reset = true },
	)

	w := p.Get()
	require.NotNil(t, w)
	w.n = 42
	p.Put(w)

	w2 := p.Get()
	assert.True(t, w2.reset, "reset must run before reuse")
	assert.Zero(t, w2.n)
	p.Put(w2)

	allocated, inUse, hits, _ := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Zero(t, inUse)
	assert.Equal(t, int64(2), hits)
}

func TestScratchPools(t *testing.T) {
	for _, size := range []ScratchSize{Small, Medium, Large} {
		b := GetScratch(size)
		require.NotNil(t, b)
		assert.Zero(t, b.Len())
		b.WriteString("scratch")
		PutScratch(b, size)

		b2 := GetScratch(size)
		assert.Zero(t, b2.Len(), "scratch buffers come back reset")
		PutScratch(b2, size)
	}
}
