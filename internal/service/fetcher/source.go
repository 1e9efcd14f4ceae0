package fetcher

import (
	"sync"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// Scheduling policies for handing tasks to workers
const (
	SchedulingStatic = "static"
	SchedulingQueue  = "queue"
)

// TaskSource hands tasks to a worker one at a time
type TaskSource interface {
	// Next returns the next task, or false when the source is drained
	Next() (domain.DownloadTask, bool)
	// Len returns the number of tasks not yet handed out
	Len() int
	// Shared reports whether other workers draw from the same source
	Shared() bool
}

// SliceSource serves one partition slice to a single worker
type SliceSource struct {
	tasks []domain.DownloadTask
	pos   int
}

// NewSliceSource creates a source over tasks
func NewSliceSource(tasks []domain.DownloadTask) *SliceSource {
	return &SliceSource{tasks: tasks}
}

// Next returns the next task in order
func (s *SliceSource) Next() (domain.DownloadTask, bool) {
	if s.pos >= len(s.tasks) {
		return domain.DownloadTask{}, false
	}
	task := s.tasks[s.pos]
	s.pos++
	return task, true
}

// Len returns the number of tasks not yet handed out
func (s *SliceSource) Len() int {
	return len(s.tasks) - s.pos
}

// Shared returns false
func (s *SliceSource) Shared() bool {
	return false
}

// QueueSource is a task list drained by several workers.
// Tasks are still handed out in input order.
type QueueSource struct {
	mu    sync.Mutex
	tasks []domain.DownloadTask
	pos   int
}

// NewQueueSource creates a shared source over tasks
func NewQueueSource(tasks []domain.DownloadTask) *QueueSource {
	return &QueueSource{tasks: tasks}
}

// Next returns the next task in order
func (q *QueueSource) Next() (domain.DownloadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pos >= len(q.tasks) {
		return domain.DownloadTask{}, false
	}
	task := q.tasks[q.pos]
	q.pos++
	return task, true
}

// Len returns the number of tasks not yet handed out
func (q *QueueSource) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks) - q.pos
}

// Shared returns true
func (q *QueueSource) Shared() bool {
	return true
}
