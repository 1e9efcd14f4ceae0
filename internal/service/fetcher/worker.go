package fetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// RetryPolicy controls how often a task is attempted
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Attempts returns the maximum number of attempts per task
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return 1 + p.MaxRetries
}

// Worker drains one task source over its own remote session
type Worker struct {
	id       int
	factory  port.SessionFactory
	executor *Executor
	source   TaskSource
	retry    RetryPolicy
	report   *reporter
	logger   *zap.Logger

	session port.RemoteSession
	stale   bool
}

func newWorker(
	id int,
	factory port.SessionFactory,
	executor *Executor,
	source TaskSource,
	retry RetryPolicy,
	report *reporter,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		id:       id,
		factory:  factory,
		executor: executor,
		source:   source,
		retry:    retry,
		report:   report,
		logger:   logger.With(zap.Int("worker", id)),
	}
}

// Run processes tasks until the source is drained, the session cannot be
// (re)opened or ctx is canceled. Every task taken from a private source gets
// exactly one final report.
func (w *Worker) Run(ctx context.Context) {
	start := time.Now()
	defer func() { w.report.stats.RecordWorker(time.Since(start)) }()
	defer w.closeSession()

	if err := w.ensureSession(ctx); err != nil {
		w.fail(ctx, err)
		return
	}
	w.report.dispatcher.Dispatch(event.NewWorkerStarted(w.report.runID, w.id, w.source.Len()))

	// only a started worker reports that it finished
	canceled := false
	defer func() {
		w.report.dispatcher.Dispatch(event.NewWorkerFinished(w.report.runID, w.id, time.Since(start), canceled))
	}()

	for {
		if ctx.Err() != nil {
			canceled = true
			w.abandon(fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err()))
			return
		}

		task, ok := w.source.Next()
		if !ok {
			return
		}

		if err := w.ensureSession(ctx); err != nil {
			w.report.notStarted(w.id, task, w.causeOf(ctx, err))
			w.fail(ctx, err)
			return
		}

		if err := w.process(ctx, task); err != nil {
			w.fail(ctx, err)
			return
		}
	}
}

// process attempts one task until it succeeds, is skipped or runs out of
// attempts. A non-nil error means the session is gone for good.
func (w *Worker) process(ctx context.Context, task domain.DownloadTask) error {
	prevRemoteSize := domain.UnknownSize
	maxAttempts := w.retry.Attempts()

	for attempt := 1; ; attempt++ {
		outcome := w.executor.Execute(ctx, w.session, task, prevRemoteSize)
		if outcome.RemoteSize != domain.UnknownSize {
			prevRemoteSize = outcome.RemoteSize
		}
		// a timed out attempt is an io-error on an aborted session
		if outcome.Reason == domain.ReasonSessionUnavailable || domain.IsSessionFatal(outcome.Err) {
			w.stale = true
		}

		retry := outcome.IsFailed() && outcome.Reason.Retryable() && attempt < maxAttempts
		if retry && !w.wait(ctx) {
			retry = false
		}

		var fatal error
		if retry {
			if fatal = w.ensureSession(ctx); fatal != nil {
				retry = false
			}
		}

		w.report.attempt(domain.AttemptReport{
			Task:    task,
			Worker:  w.id,
			Attempt: attempt,
			Outcome: outcome,
			Final:   !retry,
		})

		if !retry {
			return fatal
		}
	}
}

// wait sleeps for the retry delay and returns false if ctx was canceled first
func (w *Worker) wait(ctx context.Context) bool {
	if w.retry.Delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(w.retry.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// ensureSession opens a session if there is none or the current one was lost.
// A lost session is reopened once; failure is final for this worker.
func (w *Worker) ensureSession(ctx context.Context) error {
	if w.session != nil && !w.stale {
		return nil
	}

	if w.session != nil {
		w.logger.Info("reconnecting after session loss")
		w.closeSession()
	}

	session, err := w.factory.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	w.session = session
	w.stale = false
	return nil
}

func (w *Worker) closeSession() {
	if w.session == nil {
		return
	}
	if err := w.session.Close(); err != nil {
		w.logger.Debug("failed to close session", zap.Error(err))
	}
	w.session = nil
}

// fail gives up on the remaining tasks of a private source.
// A shared source is left alone so other workers can still take its tasks.
func (w *Worker) fail(ctx context.Context, err error) {
	cause := w.causeOf(ctx, err)
	abandoned := 0
	if !w.source.Shared() {
		abandoned = w.abandon(cause)
	}
	w.report.dispatcher.Dispatch(event.NewWorkerFailed(w.report.runID, w.id, abandoned, cause))
}

// causeOf classifies why a worker stopped: cancellation wins over session errors
func (w *Worker) causeOf(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
	}
	if !domain.IsSessionFatal(err) {
		return domain.NewTransferError(domain.ReasonSessionUnavailable, err)
	}
	return err
}

// abandon reports every task left in the source as failed without an attempt
func (w *Worker) abandon(cause error) int {
	n := 0
	for {
		task, ok := w.source.Next()
		if !ok {
			return n
		}
		w.report.notStarted(w.id, task, cause)
		n++
	}
}
