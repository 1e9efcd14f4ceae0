package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	pkgsftp "github.com/pkg/sftp"
	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// aliveTimeout bounds the round trip that tells a failed request from a dead connection
const aliveTimeout = 10 * time.Second

// Session is one SFTP connection owned by a single worker
type Session struct {
	client    *pkgsftp.Client
	transport io.Closer
	logger    *zap.Logger

	closeOnce sync.Once
	closeErr  error
	aborted   atomic.Bool
}

// Ensure Session implements port.RemoteSession
var _ port.RemoteSession = (*Session)(nil)

// NewSession wraps an established SFTP client.
// transport, when set, is closed after the client (usually the *ssh.Client).
func NewSession(client *pkgsftp.Client, transport io.Closer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		client:    client,
		transport: transport,
		logger:    logger,
	}
}

// Stat returns the size of the remote file
func (s *Session) Stat(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := s.client.Stat(path)
	if err != nil {
		return 0, s.wrap("stat", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", domain.ErrRemoteNotFound, path)
	}
	return info.Size(), nil
}

// OpenAt opens the remote file and seeks to offset
func (s *Session) OpenAt(ctx context.Context, path string, offset int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.client.Open(path)
	if err != nil {
		return nil, s.wrap("open", path, err)
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, s.wrap("seek", path, err)
		}
	}

	return &remoteFile{file: f, session: s, path: path}, nil
}

// ReadDir lists a remote directory
func (s *Session) ReadDir(ctx context.Context, dir string) ([]port.RemoteEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := s.client.ReadDir(dir)
	if err != nil {
		return nil, s.wrap("list", dir, err)
	}

	entries := make([]port.RemoteEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, port.RemoteEntry{
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		})
	}
	return entries, nil
}

// Close closes the SFTP client and the underlying transport
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
		if s.transport != nil {
			if err := s.transport.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// Abort closes the transport under any in-flight request. pkg/sftp then fails
// every pending request, which a File lock held by a blocked Read cannot stop.
func (s *Session) Abort() {
	if !s.aborted.CompareAndSwap(false, true) {
		return
	}

	var err error
	if s.transport != nil {
		err = s.transport.Close()
	} else {
		err = s.client.Close()
	}
	s.logger.Debug("sftp session aborted", zap.Error(err))
}

// wrap classifies err. A status reply from the server means the session is
// healthy; anything else is checked with a round trip before it is reported
// as a lost session.
func (s *Session) wrap(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to %s %s: %w", op, path, err)
	}

	var status *pkgsftp.StatusError
	if errors.As(err, &status) {
		return fmt.Errorf("failed to %s %s: %w", op, path, err)
	}

	if !s.alive() {
		s.logger.Debug("sftp session lost", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: failed to %s %s: %w", domain.ErrSessionLost, op, path, err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, path, err)
}

// alive checks the connection with a round trip. A server that does not
// answer within aliveTimeout is treated as gone and the session is aborted.
func (s *Session) alive() bool {
	if s.aborted.Load() {
		return false
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.client.Getwd()
		done <- err
	}()

	timer := time.NewTimer(aliveTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err == nil
	case <-timer.C:
		s.Abort()
		return false
	}
}

// remoteFile classifies read errors so a dropped connection surfaces as
// domain.ErrSessionLost to the caller
type remoteFile struct {
	file    *pkgsftp.File
	session *Session
	path    string
}

func (r *remoteFile) Read(p []byte) (int, error) {
	n, err := r.file.Read(p)
	if err != nil && err != io.EOF {
		err = r.session.wrap("read", r.path, err)
	}
	return n, err
}

func (r *remoteFile) Close() error {
	return r.file.Close()
}
