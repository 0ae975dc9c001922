//go:build !linux && !darwin

package storage

// AvailableSpace reports the free bytes on the filesystem holding path, or
// -1 when it cannot be determined. Not implemented on this platform.
func AvailableSpace(path string) int64 {
	return -1
}
