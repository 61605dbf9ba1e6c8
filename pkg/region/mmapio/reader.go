// Package mmapio provides memory-mapped read-only file access for the
// overflow store, so sealed segments serve recalls without read syscalls.
// ReadAt returns views into the mapping without copying.
package mmapio

import (
	"fmt"
	"os"
)

// Reader is a memory-mapped read-only view of one file.
type Reader struct {
	file *os.File
	data []byte
	size int64
}

// Open maps the file at path. Overflow recalls are random access, so the
// kernel is advised accordingly.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	size := stat.Size()
	if size == 0 {
		file.Close()
		return nil, fmt.Errorf("file is empty")
	}

	data, err := mmap(int(file.Fd()), 0, int(size), protRead, mapShared)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}

	// Non-fatal; the mapping works without the advice.
	_ = madvise(data, madvRandom)

	return &Reader{
		file: file,
		data: data,
		size: size,
	}, nil
}

// Size returns the mapped file size.
func (r *Reader) Size() int64 {
	return r.size
}

// ReadAt returns a zero-copy view of n bytes at off. The slice aliases
// the mapping and is only valid until Close.
func (r *Reader) ReadAt(off int64, n int) ([]byte, error) {
	if off < 0 || off+int64(n) > r.size {
		return nil, fmt.Errorf("read [%d, %d) out of mapped range %d", off, off+int64(n), r.size)
	}
	return r.data[off : off+int64(n)], nil
}

// Prefetch advises the kernel that the given range is needed soon.
func (r *Reader) Prefetch(off int64, n int) {
	if off < 0 || off+int64(n) > r.size || n == 0 {
		return
	}
	_ = madvise(r.data[off:off+int64(n)], madvWillneed)
}

// Close unmaps the file. Views returned by ReadAt become invalid.
func (r *Reader) Close() error {
	if r.data != nil {
		if err := munmap(r.data); err != nil {
			return err
		}
		r.data = nil
	}
	return r.file.Close()
}
