package port

import (
	"io"
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// TempFile is an open resume checkpoint
type TempFile interface {
	io.Writer
	Sync() error
	Close() error
}

// FileSystem defines the interface for local filesystem operations
type FileSystem interface {
	// RootDir returns the download base directory
	RootDir() string

	// EnsureDir creates the parent directory of filePath
	EnsureDir(filePath string) error

	// Inspect reports the final and temp files of a task
	Inspect(task domain.DownloadTask) (domain.LocalState, error)

	// OpenTemp opens the temp file for writing.
	// With truncate set the file is recreated, otherwise writes are appended.
	OpenTemp(tempPath string, truncate bool) (TempFile, error)

	// FileSize returns the size of a local file
	FileSize(path string) (int64, error)

	// Finalize atomically renames the temp file to the final path
	Finalize(tempPath, finalPath string) error

	// RemoveFile removes a local file, ignoring missing files
	RemoveFile(path string) error

	// GetDiskUsage returns disk usage statistics for the base directory
	GetDiskUsage() (*DiskUsage, error)

	// CleanOldTempFiles removes temp files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)

	// CleanEmptyDirs removes empty directories under the base directory
	CleanEmptyDirs() error
}
