package sqlite

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
)

const writeTimeout = 5 * time.Second

// JournalHandler writes run events to the journal
type JournalHandler struct {
	journal *Journal
	logger  *zap.Logger
}

// NewJournalHandler creates a new JournalHandler
func NewJournalHandler(journal *Journal, logger *zap.Logger) *JournalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalHandler{journal: journal, logger: logger}
}

// Handle processes an event
func (h *JournalHandler) Handle(e event.DomainEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch ev := e.(type) {
	case event.RunStarted:
		return h.journal.StartRun(ctx, ev.RunID, ev.Workers, ev.TotalTasks, ev.OccurredAt())
	case event.AttemptFinished:
		return h.journal.RecordAttempt(ctx, ev.RunID, ev.Report, ev.OccurredAt())
	case event.RunFinished:
		if err := h.journal.FinishRun(ctx, ev.Summary, ev.OccurredAt()); err != nil {
			return err
		}
		h.logger.Debug("run journaled", zap.String("run_id", ev.RunID))
	}
	return nil
}

// HandledEvents returns the event types this handler processes
func (h *JournalHandler) HandledEvents() []string {
	return []string{
		event.NameRunStarted,
		event.NameAttemptFinished,
		event.NameRunFinished,
	}
}

var _ event.EventHandler = (*JournalHandler)(nil)
