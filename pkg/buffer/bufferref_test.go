package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateDirect(t *testing.T) {
	a := NewAllocator()

	ref, err := a.AllocateDirect(100, OwnerStorage)
	require.NoError(t, err)
	assert.True(t, ref.IsDirect())
	assert.Equal(t, OwnerStorage, ref.Owner())
	assert.Equal(t, 100, ref.Len())
	assert.GreaterOrEqual(t, ref.Cap(), 100)
	assert.Zero(t, ref.Cap()%a.pageSize, "direct capacity is page-rounded")
	assert.Equal(t, int32(1), ref.Refs())

	m := a.Metrics()
	assert.Equal(t, int64(ref.Cap()), m[OwnerStorage].InUseBytes)

	ref.Release()
	m = a.Metrics()
	assert.Zero(t, m[OwnerStorage].InUseBytes)
	assert.Equal(t, int64(ref.Cap()), int64(0), "capacity reads zero after free")
}

func TestAllocateDirectRejectsBadSize(t *testing.T) {
	a := NewAllocator()
	_, err := a.AllocateDirect(0, OwnerStorage)
	assert.Error(t, err)
	_, err = a.AllocateDirect(-5, OwnerStorage)
	assert.Error(t, err)
}

func TestRetainReleasePairs(t *testing.T) {
	a := NewAllocator()
	ref, err := a.AllocateDirect(64, OwnerStorage)
	require.NoError(t, err)

	require.True(t, ref.Retain())
	require.True(t, ref.Retain())
	assert.Equal(t, int32(3), ref.Refs())

	ref.Release()
	ref.Release()
	assert.Equal(t, int32(1), ref.Refs())
	assert.NotNil(t, ref.Bytes())

	ref.Release()
	assert.Equal(t, int32(0), ref.Refs())
	assert.False(t, ref.Retain(), "retain must fail once the count hit zero")
	assert.Nil(t, ref.Bytes())
}

func TestFreeHappensExactlyOnce(t *testing.T) {
	a := NewAllocator()
	ref, err := a.AllocateDirect(64, OwnerStorage)
	require.NoError(t, err)
	size := int64(ref.Cap())

	ref.Release()
	// A second stray release is absorbed without double-free.
	ref.Release()

	m := a.Metrics()
	assert.Equal(t, size, m[OwnerStorage].TotalBytes)
	assert.Zero(t, m[OwnerStorage].InUseBytes)
}

func TestConcurrentRetainRelease(t *testing.T) {
	a := NewAllocator()
	ref, err := a.AllocateDirect(4096, OwnerStorage)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				if ref.Retain() {
					ref.Release()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ref.Refs())
	ref.Release()
	assert.Zero(t, a.Metrics()[OwnerStorage].InUseBytes)
}

func TestTransferMovesAccounting(t *testing.T) {
	src := NewAllocator()
	dst := NewAllocator()

	ref, err := src.AllocateDirect(128, OwnerDecompress)
	require.NoError(t, err)
	size := int64(ref.Cap())
	require.Equal(t, size, src.Metrics()[OwnerDecompress].InUseBytes)

	ref.TransferTo(dst, OwnerStorage)
	assert.Zero(t, src.Metrics()[OwnerDecompress].InUseBytes)
	assert.Equal(t, size, dst.Metrics()[OwnerStorage].InUseBytes)
	assert.Equal(t, OwnerStorage, ref.Owner())

	ref.Release()
	assert.Zero(t, dst.Metrics()[OwnerStorage].InUseBytes)
}

func TestHeapBuffers(t *testing.T) {
	a := NewAllocator()

	ref := a.AllocateHeap(256)
	assert.False(t, ref.IsDirect())
	assert.Equal(t, 256, ref.Len())
	ref.Release()
	assert.Nil(t, ref.Bytes())

	data := []byte{1, 2, 3, 4}
	wrapped := a.WrapHeap(data)
	assert.Equal(t, data, wrapped.Bytes())
	assert.Equal(t, data, wrapped.Dup())
	// Heap wrapping charges no owner.
	for _, m := range a.Metrics() {
		assert.Zero(t, m.InUseBytes)
	}
	wrapped.Release()
}

func TestBytesAndDupShareStorage(t *testing.T) {
	a := NewAllocator()
	ref, err := a.AllocateDirect(16, OwnerStorage)
	require.NoError(t, err)

	copy(ref.Bytes(), []byte("columnar"))
	view := ref.Dup()
	assert.Equal(t, byte('c'), view[0])

	view[0] = 'C'
	assert.Equal(t, byte('C'), ref.Bytes()[0])
	ref.Release()
}
