//go:build darwin
// +build darwin

package buffer

import (
	"syscall"
)

// anonMmap maps an anonymous private region of length bytes.
func anonMmap(length int) ([]byte, error) {
	return syscall.Mmap(-1, 0, length,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_ANON|syscall.MAP_PRIVATE)
}

// munmap unmaps a region obtained from anonMmap
func munmap(b []byte) error {
	return syscall.Munmap(b)
}
