//go:build !linux && !darwin && !freebsd && !windows

package preflight

func freeBytes(path string) (uint64, error) {
	return 0, errFreeSpaceUnsupported
}
