package mmapio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment")
	content := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(len(content)), r.Size())

	got, err := r.ReadAt(4, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("quick"), got)

	// Prefetch on any valid range is harmless.
	r.Prefetch(0, len(content))

	_, err = r.ReadAt(40, 10)
	assert.Error(t, err)
	_, err = r.ReadAt(-1, 2)
	assert.Error(t, err)
}

func TestOpenMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Open(empty)
	assert.Error(t, err)
}
