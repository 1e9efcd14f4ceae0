package port

import (
	"context"
	"time"
)

// RunRecord is one run as stored by the journal
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Workers    int
	TotalTasks int
	Succeeded  int
	Skipped    int
	Failed     int
	Attempts   int
	Bytes      int64
	Elapsed    time.Duration
}

// FailureRecord is a task that failed in a recorded run
type FailureRecord struct {
	RunID      string
	RemotePath string
	Reason     string
	Error      string
	Attempts   int
}

// RunJournal reads and prunes the run history
type RunJournal interface {
	// ListRuns returns the most recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// ListFailures returns the final failures of a run
	ListFailures(ctx context.Context, runID string) ([]FailureRecord, error)

	// PruneOlderThan deletes runs that started before now-age
	// Returns the number of runs deleted
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
