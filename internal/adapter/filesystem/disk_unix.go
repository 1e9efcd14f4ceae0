//go:build !windows
// +build !windows

package filesystem

import (
	"fmt"
	"syscall"

	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// GetDiskUsage returns disk usage for the base directory.
// Free counts only blocks available to unprivileged users.
func (m *Manager) GetDiskUsage() (*port.DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(m.rootDir, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	blockSize := uint64(stat.Bsize)
	usage := &port.DiskUsage{
		Total: stat.Blocks * blockSize,
		Free:  stat.Bavail * blockSize,
	}
	usage.Used = usage.Total - stat.Bfree*blockSize
	if usage.Total > 0 {
		usage.UsedPct = float64(usage.Used) / float64(usage.Total) * 100
	}
	return usage, nil
}
