package domain

import "fmt"

// UnknownSize marks a DownloadTask whose remote size is not known before stat
const UnknownSize int64 = -1

// DefaultTempSuffix is appended to the final path to form the resume checkpoint path
const DefaultTempSuffix = ".downloading"

// DownloadTask describes one remote file to fetch.
// Tasks are created once by the catalog and never mutated afterwards.
type DownloadTask struct {
	RemotePath string
	FinalPath  string
	TempPath   string

	// ExpectedSize is the size reported by the remote listing, or UnknownSize
	ExpectedSize int64
}

// NewDownloadTask creates a task whose temp path is derived from the final path.
// The same final path always yields the same temp path, so a later run
// rediscovers partial files left by an earlier one.
func NewDownloadTask(remotePath, finalPath string, expectedSize int64, tempSuffix string) DownloadTask {
	if tempSuffix == "" {
		tempSuffix = DefaultTempSuffix
	}
	return DownloadTask{
		RemotePath:   remotePath,
		FinalPath:    finalPath,
		TempPath:     finalPath + tempSuffix,
		ExpectedSize: expectedSize,
	}
}

// HasExpectedSize returns true if the listing reported a size
func (t DownloadTask) HasExpectedSize() bool {
	return t.ExpectedSize >= 0
}

// String returns the remote path, which identifies the task in logs
func (t DownloadTask) String() string {
	return t.RemotePath
}

// Validate checks that the task names all three paths
func (t DownloadTask) Validate() error {
	if t.RemotePath == "" {
		return fmt.Errorf("%w: remote path is empty", ErrInvalidInput)
	}
	if t.FinalPath == "" || t.TempPath == "" {
		return fmt.Errorf("%w: local paths are empty for %s", ErrInvalidInput, t.RemotePath)
	}
	if t.FinalPath == t.TempPath {
		return fmt.Errorf("%w: temp path equals final path for %s", ErrInvalidInput, t.RemotePath)
	}
	return nil
}
