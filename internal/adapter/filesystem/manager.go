package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// Manager handles local filesystem operations under the download base directory
type Manager struct {
	rootDir    string
	tempSuffix string
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager(rootDir string) (*Manager, error) {
	return NewManagerWithSuffix(rootDir, domain.DefaultTempSuffix)
}

// NewManagerWithSuffix creates a new filesystem manager whose cleanup
// recognises temp files by the given suffix
func NewManagerWithSuffix(rootDir, tempSuffix string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base dir: %w", err)
	}

	if tempSuffix == "" {
		tempSuffix = domain.DefaultTempSuffix
	}

	return &Manager{
		rootDir:    rootDir,
		tempSuffix: tempSuffix,
	}, nil
}

// RootDir returns the download base directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// EnsureDir ensures the directory for a file path exists
func (m *Manager) EnsureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}
	return nil
}

// Inspect reports the final and temp files of a task.
// Directories at either path are reported as errors rather than as files.
func (m *Manager) Inspect(task domain.DownloadTask) (domain.LocalState, error) {
	var state domain.LocalState

	exists, size, err := statFile(task.FinalPath)
	if err != nil {
		return state, err
	}
	state.FinalExists, state.FinalSize = exists, size

	exists, size, err = statFile(task.TempPath)
	if err != nil {
		return state, err
	}
	state.TempExists, state.TempSize = exists, size

	return state, nil
}

func statFile(path string) (bool, int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, 0, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	return true, info.Size(), nil
}

// OpenTemp opens the temp file for writing
func (m *Manager) OpenTemp(tempPath string, truncate bool) (port.TempFile, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	f, err := os.OpenFile(tempPath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open temp file: %w", err)
	}
	return f, nil
}

// FileSize returns the size of a local file
func (m *Manager) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Finalize renames the temp file to its final path
func (m *Manager) Finalize(tempPath, finalPath string) error {
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// RemoveFile removes a local file
func (m *Manager) RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// CleanOldTempFiles removes temp files older than the specified duration
func (m *Manager) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, m.tempSuffix) {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}

// CleanEmptyDirs removes empty directories under root, deepest first
func (m *Manager) CleanEmptyDirs() error {
	var dirs []string
	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != m.rootDir {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		os.Remove(dirs[i]) // only succeeds if empty
	}
	return nil
}
