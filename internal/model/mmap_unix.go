//go:build unix

package model

import (
	"os"
	"syscall"
)

// mmapFile maps f read-only (Unix implementation).
func mmapFile(f *os.File, size int64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	return syscall.Mmap(
		int(f.Fd()), //nolint:gosec // G115: file descriptor fits in int
		0,
		int(size), //nolint:gosec // G115: file size validated by the caller
		syscall.PROT_READ,
		syscall.MAP_SHARED,
	)
}

// munmapFile releases a mapping created by mmapFile (Unix implementation).
func munmapFile(data []byte) error {
	return syscall.Munmap(data)
}
