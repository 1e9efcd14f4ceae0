package port

import (
	"context"
	"io"
	"time"
)

// RemoteEntry is one item of a remote directory listing
type RemoteEntry struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// RemoteSession is an authenticated connection to the remote file server.
// A session is owned by a single worker and is not used concurrently.
//
// Errors from dial, handshake or authentication wrap domain.ErrSessionUnavailable,
// a dropped connection wraps domain.ErrSessionLost and a missing path wraps fs.ErrNotExist.
type RemoteSession interface {
	// Stat returns the size of the remote file
	Stat(ctx context.Context, path string) (int64, error)

	// OpenAt opens the remote file positioned at offset
	OpenAt(ctx context.Context, path string, offset int64) (io.ReadCloser, error)

	// ReadDir lists a remote directory
	ReadDir(ctx context.Context, dir string) ([]RemoteEntry, error)

	// Close releases the session
	Close() error

	// Abort drops the connection so that calls blocked on it return with
	// domain.ErrSessionLost. It may be called from another goroutine and
	// leaves the session unusable.
	Abort()
}

// SessionFactory opens new remote sessions
type SessionFactory interface {
	Open(ctx context.Context) (RemoteSession, error)
}

// DirLister lists remote directories; RemoteSession satisfies it
type DirLister interface {
	ReadDir(ctx context.Context, dir string) ([]RemoteEntry, error)
}
