package fetcher

import (
	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
)

// reporter forwards attempt reports to the aggregator and the event handlers
type reporter struct {
	runID      string
	stats      *Aggregator
	dispatcher event.EventDispatcher
}

func (r *reporter) attempt(report domain.AttemptReport) {
	r.stats.Record(report)
	r.dispatcher.Dispatch(event.NewAttemptFinished(r.runID, report))
}

// notStarted reports a task that never got an attempt
func (r *reporter) notStarted(worker int, task domain.DownloadTask, cause error) {
	r.attempt(domain.AttemptReport{
		Task:    task,
		Worker:  worker,
		Attempt: 0,
		Outcome: domain.Failed(cause, 0, domain.UnknownSize, 0),
		Final:   true,
	})
}
