package event

import (
	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case RunStarted:
		h.logger.Info("run started",
			zap.String("run_id", e.RunID),
			zap.Int("tasks", e.TotalTasks),
			zap.Int("workers", e.Workers),
		)
	case RunFinished:
		h.logger.Info("run finished",
			zap.String("run_id", e.RunID),
			zap.Int("total", e.Summary.TotalTasks),
			zap.Int("succeeded", e.Summary.Succeeded),
			zap.Int("skipped", e.Summary.Skipped),
			zap.Int("failed", e.Summary.Failed),
			zap.Int64("bytes", e.Summary.TotalBytes),
			zap.Duration("elapsed", e.Summary.Elapsed),
		)
	case WorkerStarted:
		h.logger.Info("worker started",
			zap.Int("worker", e.Worker),
			zap.Int("tasks", e.Tasks),
		)
	case WorkerFailed:
		h.logger.Error("worker session unavailable",
			zap.Int("worker", e.Worker),
			zap.Int("abandoned_tasks", e.AbandonedTasks),
			zap.String("error", e.Error),
		)
	case WorkerFinished:
		h.logger.Info("worker finished",
			zap.Int("worker", e.Worker),
			zap.Duration("elapsed", e.Elapsed),
			zap.Bool("canceled", e.Canceled),
		)
	case AttemptFinished:
		h.logAttempt(e.Report)
	case TempDiscarded:
		h.logger.Warn("discarding temp file larger than remote file",
			zap.String("remote", e.RemotePath),
			zap.String("temp", e.TempPath),
			zap.Int64("temp_size", e.TempSize),
			zap.Int64("remote_size", e.RemoteSize),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

func (h *LoggingHandler) logAttempt(r domain.AttemptReport) {
	fields := []zap.Field{
		zap.Int("worker", r.Worker),
		zap.String("remote", r.Task.RemotePath),
		zap.Int("attempt", r.Attempt),
		zap.Int64("bytes", r.Outcome.Bytes),
		zap.Duration("duration", r.Outcome.Duration),
	}
	if r.Outcome.Plan != domain.PlanNone {
		fields = append(fields, zap.Stringer("plan", r.Outcome.Plan))
	}

	switch r.Outcome.Status {
	case domain.StatusSuccess:
		h.logger.Info("file downloaded", append(fields, zap.String("path", r.Task.FinalPath))...)
	case domain.StatusSkipped:
		h.logger.Debug("file already complete, skipping", append(fields, zap.String("path", r.Task.FinalPath))...)
	default:
		fields = append(fields,
			zap.String("reason", string(r.Outcome.Reason)),
			zap.Bool("final", r.Final),
			zap.Error(r.Outcome.Err))
		if r.Final {
			h.logger.Error("download failed", fields...)
		} else {
			h.logger.Warn("attempt failed, will retry", fields...)
		}
	}
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{"*"}
}
