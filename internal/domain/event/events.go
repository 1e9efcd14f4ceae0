package event

import (
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// Event names
const (
	NameRunStarted      = "run.started"
	NameRunFinished     = "run.finished"
	NameWorkerStarted   = "worker.started"
	NameWorkerFailed    = "worker.failed"
	NameWorkerFinished  = "worker.finished"
	NameAttemptFinished = "attempt.finished"
	NameTempDiscarded   = "temp.discarded"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
	RunID     string
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func newBase(runID string) BaseEvent {
	return BaseEvent{Timestamp: time.Now(), RunID: runID}
}

// RunStarted is raised once before any worker starts
type RunStarted struct {
	BaseEvent
	TotalTasks int
	Workers    int
}

// EventName returns the event name
func (e RunStarted) EventName() string {
	return NameRunStarted
}

// NewRunStarted creates a new RunStarted event
func NewRunStarted(runID string, totalTasks, workers int) RunStarted {
	return RunStarted{
		BaseEvent:  newBase(runID),
		TotalTasks: totalTasks,
		Workers:    workers,
	}
}

// RunFinished is raised after all workers joined
type RunFinished struct {
	BaseEvent
	Summary domain.RunSummary
}

// EventName returns the event name
func (e RunFinished) EventName() string {
	return NameRunFinished
}

// NewRunFinished creates a new RunFinished event
func NewRunFinished(runID string, summary domain.RunSummary) RunFinished {
	return RunFinished{
		BaseEvent: newBase(runID),
		Summary:   summary,
	}
}

// WorkerStarted is raised when a worker opened its session
type WorkerStarted struct {
	BaseEvent
	Worker int
	Tasks  int
}

// EventName returns the event name
func (e WorkerStarted) EventName() string {
	return NameWorkerStarted
}

// NewWorkerStarted creates a new WorkerStarted event
func NewWorkerStarted(runID string, worker, tasks int) WorkerStarted {
	return WorkerStarted{
		BaseEvent: newBase(runID),
		Worker:    worker,
		Tasks:     tasks,
	}
}

// WorkerFailed is raised when a worker cannot open or reopen its session
type WorkerFailed struct {
	BaseEvent
	Worker         int
	AbandonedTasks int
	Error          string
}

// EventName returns the event name
func (e WorkerFailed) EventName() string {
	return NameWorkerFailed
}

// NewWorkerFailed creates a new WorkerFailed event
func NewWorkerFailed(runID string, worker, abandoned int, err error) WorkerFailed {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return WorkerFailed{
		BaseEvent:      newBase(runID),
		Worker:         worker,
		AbandonedTasks: abandoned,
		Error:          msg,
	}
}

// WorkerFinished is raised when a worker drained its source
type WorkerFinished struct {
	BaseEvent
	Worker   int
	Elapsed  time.Duration
	Canceled bool
}

// EventName returns the event name
func (e WorkerFinished) EventName() string {
	return NameWorkerFinished
}

// NewWorkerFinished creates a new WorkerFinished event
func NewWorkerFinished(runID string, worker int, elapsed time.Duration, canceled bool) WorkerFinished {
	return WorkerFinished{
		BaseEvent: newBase(runID),
		Worker:    worker,
		Elapsed:   elapsed,
		Canceled:  canceled,
	}
}

// AttemptFinished is raised for every attempt, final or not
type AttemptFinished struct {
	BaseEvent
	Report domain.AttemptReport
}

// EventName returns the event name
func (e AttemptFinished) EventName() string {
	return NameAttemptFinished
}

// NewAttemptFinished creates a new AttemptFinished event
func NewAttemptFinished(runID string, report domain.AttemptReport) AttemptFinished {
	return AttemptFinished{
		BaseEvent: newBase(runID),
		Report:    report,
	}
}

// TempDiscarded is raised when a temp file larger than the remote file is thrown away
type TempDiscarded struct {
	BaseEvent
	RemotePath string
	TempPath   string
	TempSize   int64
	RemoteSize int64
}

// EventName returns the event name
func (e TempDiscarded) EventName() string {
	return NameTempDiscarded
}

// NewTempDiscarded creates a new TempDiscarded event
func NewTempDiscarded(runID string, task domain.DownloadTask, tempSize, remoteSize int64) TempDiscarded {
	return TempDiscarded{
		BaseEvent:  newBase(runID),
		RemotePath: task.RemotePath,
		TempPath:   task.TempPath,
		TempSize:   tempSize,
		RemoteSize: remoteSize,
	}
}
