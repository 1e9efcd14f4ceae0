package fetcher

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/himawari-fetch/internal/adapter/filesystem"
	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// fakeServer is a remote file tree shared by all sessions of a factory
type fakeServer struct {
	mu        sync.Mutex
	files     map[string][]byte
	statSize  map[string]int64 // size reported by Stat instead of the content length
	readFails map[string]int   // opens whose reader fails halfway
	lost      map[string]int   // stats that report a lost session
	hang      map[string]int   // opens whose reader blocks until the session is aborted
	opens     map[string]int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		files:     make(map[string][]byte),
		statSize:  make(map[string]int64),
		readFails: make(map[string]int),
		lost:      make(map[string]int),
		hang:      make(map[string]int),
		opens:     make(map[string]int),
	}
}

func (s *fakeServer) put(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
}

func (s *fakeServer) openCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[path]
}

type fakeSession struct {
	server  *fakeServer
	aborted chan struct{}
	once    sync.Once
	aborts  int
}

func newFakeSession(server *fakeServer) *fakeSession {
	return &fakeSession{server: server, aborted: make(chan struct{})}
}

func (f *fakeSession) Stat(ctx context.Context, path string) (int64, error) {
	s := f.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lost[path] > 0 {
		s.lost[path]--
		return 0, fmt.Errorf("%w: stat %s: connection lost", domain.ErrSessionLost, path)
	}
	content, ok := s.files[path]
	if !ok {
		return 0, fmt.Errorf("stat %s: %w", path, fs.ErrNotExist)
	}
	if size, ok := s.statSize[path]; ok {
		return size, nil
	}
	return int64(len(content)), nil
}

func (f *fakeSession) OpenAt(ctx context.Context, path string, offset int64) (io.ReadCloser, error) {
	s := f.server
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	s.opens[path]++

	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	r := &fakeReader{data: content[offset:], failAt: -1}
	if s.readFails[path] > 0 {
		s.readFails[path]--
		r.failAt = len(r.data) / 2
	}
	if s.hang[path] > 0 {
		s.hang[path]--
		r.stalled = f.aborted
	}
	return r, nil
}

func (f *fakeSession) ReadDir(ctx context.Context, dir string) ([]port.RemoteEntry, error) {
	s := f.server
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []port.RemoteEntry
	for p, content := range s.files {
		if filepath.Dir(p) == filepath.Clean(dir) {
			entries = append(entries, port.RemoteEntry{Name: filepath.Base(p), Size: int64(len(content))})
		}
	}
	return entries, nil
}

func (f *fakeSession) Close() error {
	return nil
}

func (f *fakeSession) Abort() {
	f.once.Do(func() {
		f.aborts++
		close(f.aborted)
	})
}

func (f *fakeSession) abortCount() int {
	select {
	case <-f.aborted:
		return f.aborts
	default:
		return 0
	}
}

// fakeReader serves data; a stalled reader ignores Close like a pkg/sftp
// File blocked in Read and only returns once its session is aborted
type fakeReader struct {
	data    []byte
	pos     int
	failAt  int
	stalled <-chan struct{}
}

func (r *fakeReader) Read(p []byte) (int, error) {
	if r.stalled != nil {
		<-r.stalled
		return 0, fmt.Errorf("%w: read: connection closed", domain.ErrSessionLost)
	}
	if r.failAt >= 0 && r.pos >= r.failAt {
		return 0, fmt.Errorf("connection reset by peer")
	}
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}

	end := len(r.data)
	if r.failAt >= 0 && r.failAt < end {
		end = r.failAt
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func (r *fakeReader) Close() error {
	return nil
}

// fakeFactory opens sessions on a fakeServer; failOpen decides by the
// 1-based open number whether an open fails
type fakeFactory struct {
	server   *fakeServer
	mu       sync.Mutex
	opens    int
	failOpen func(n int) bool
}

func (f *fakeFactory) Open(ctx context.Context) (port.RemoteSession, error) {
	f.mu.Lock()
	f.opens++
	n := f.opens
	f.mu.Unlock()

	if f.failOpen != nil && f.failOpen(n) {
		return nil, fmt.Errorf("%w: dial fake: connection refused", domain.ErrSessionUnavailable)
	}
	return newFakeSession(f.server), nil
}

func (f *fakeFactory) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// recordingHandler keeps every dispatched event
type recordingHandler struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (h *recordingHandler) Handle(e event.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHandler) HandledEvents() []string {
	return []string{"*"}
}

func (h *recordingHandler) named(name string) []event.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []event.DomainEvent
	for _, e := range h.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func newRecordingDispatcher() (*event.InMemoryDispatcher, *recordingHandler) {
	d := event.NewInMemoryDispatcher(nil)
	h := &recordingHandler{}
	d.Subscribe(h)
	return d, h
}

func newTestFS(t *testing.T) *filesystem.Manager {
	t.Helper()
	m, err := filesystem.NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

// content returns n deterministic bytes
func content(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func newTask(fsys *filesystem.Manager, name string, expected int64) domain.DownloadTask {
	return domain.NewDownloadTask(
		"/jma/hsd/202401/01/00/"+name,
		filepath.Join(fsys.RootDir(), "2024", "01", "01", "00", name),
		expected,
		"",
	)
}
