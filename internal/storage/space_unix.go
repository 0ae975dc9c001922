//go:build linux || darwin

package storage

import "syscall"

// AvailableSpace reports the free bytes on the filesystem holding path, or
// -1 when it cannot be determined.
func AvailableSpace(path string) int64 {
	var stat syscall.Statfs_t
	if err := statfs(path, &stat); err != nil {
		return -1
	}
	return int64(stat.Bavail) * int64(stat.Bsize)
}

// Swappable for tests that need to simulate a full disk.
var statfs = syscall.Statfs
