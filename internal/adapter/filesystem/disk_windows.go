//go:build windows
// +build windows

package filesystem

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/vertextoedge/himawari-fetch/internal/port"
)

var (
	kernel32         = syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpace = kernel32.NewProc("GetDiskFreeSpaceExW")
)

// GetDiskUsage returns disk usage for the base directory
func (m *Manager) GetDiskUsage() (*port.DiskUsage, error) {
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64

	pathPtr, err := syscall.UTF16PtrFromString(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to convert path: %w", err)
	}

	ret, _, err := getDiskFreeSpace.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFreeBytes)),
	)
	if ret == 0 {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	used := totalBytes - totalFreeBytes
	return &port.DiskUsage{
		Total:   totalBytes,
		Used:    used,
		Free:    freeBytesAvailable,
		UsedPct: float64(used) / float64(totalBytes) * 100,
	}, nil
}
