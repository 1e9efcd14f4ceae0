package fetcher

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// Aggregator folds attempt reports from all workers into a RunSummary.
// Records commute, so the summary does not depend on worker interleaving.
type Aggregator struct {
	mu       sync.Mutex
	summary  domain.RunSummary
	started  time.Time
	failures []domain.FailedTask
}

// NewAggregator creates an aggregator for a run of totalTasks tasks
func NewAggregator(totalTasks int) *Aggregator {
	return &Aggregator{
		summary: domain.RunSummary{TotalTasks: totalTasks},
		started: time.Now(),
	}
}

// Record adds one attempt report.
// Attempt 0 marks a task that never started; it counts toward the totals
// but not toward attempts.
func (a *Aggregator) Record(r domain.AttemptReport) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r.Attempt > 0 {
		a.summary.Attempts++
		if r.Attempt > 1 {
			a.summary.Retries++
		}
	}
	a.summary.TotalBytes += r.Outcome.Bytes

	if !r.Final {
		return
	}

	switch r.Outcome.Status {
	case domain.StatusSuccess:
		a.summary.Succeeded++
	case domain.StatusSkipped:
		a.summary.Skipped++
	default:
		a.summary.Failed++
		a.failures = append(a.failures, domain.FailedTask{
			RemotePath: r.Task.RemotePath,
			FinalPath:  r.Task.FinalPath,
			Reason:     r.Outcome.Reason,
			Error:      r.Outcome.ErrorMessage(),
		})
	}
}

// RecordWorker adds a worker's wall-clock time; the run takes as long as
// its slowest worker
func (a *Aggregator) RecordWorker(elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if elapsed > a.summary.Elapsed {
		a.summary.Elapsed = elapsed
	}
}

// Snapshot returns the summary with failures sorted by remote path
func (a *Aggregator) Snapshot() domain.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// Live returns the summary of a run in progress, with elapsed time
// measured from the aggregator's creation
func (a *Aggregator) Live() domain.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.snapshot()
	if since := time.Since(a.started); since > s.Elapsed {
		s.Elapsed = since
	}
	return s
}

func (a *Aggregator) snapshot() domain.RunSummary {
	s := a.summary
	s.Failures = slices.Clone(a.failures)
	slices.SortFunc(s.Failures, func(x, y domain.FailedTask) int {
		return cmp.Or(
			cmp.Compare(x.RemotePath, y.RemotePath),
			cmp.Compare(x.FinalPath, y.FinalPath),
			cmp.Compare(x.Reason, y.Reason),
			cmp.Compare(x.Error, y.Error),
		)
	})
	return s
}
