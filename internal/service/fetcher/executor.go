package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
	"github.com/vertextoedge/himawari-fetch/internal/port"
	"github.com/vertextoedge/himawari-fetch/internal/util/ratelimiter"
)

const (
	readBufferSize    = 32 * 1024
	defaultSinkBuffer = 256 * 1024
)

// ExecutorConfig tunes a single transfer attempt
type ExecutorConfig struct {
	// SinkBufferSize is the write buffer in front of the temp file
	SinkBufferSize int
	// AttemptTimeout bounds one attempt; zero means no bound
	AttemptTimeout time.Duration
	// ProgressInterval throttles progress logs; zero disables them
	ProgressInterval time.Duration
}

// Executor performs one attempt of one task
type Executor struct {
	fs         port.FileSystem
	dispatcher event.EventDispatcher
	logger     *zap.Logger
	runID      string
	cfg        ExecutorConfig
}

// NewExecutor creates a new Executor
func NewExecutor(
	fs port.FileSystem,
	dispatcher event.EventDispatcher,
	logger *zap.Logger,
	runID string,
	cfg ExecutorConfig,
) *Executor {
	if cfg.SinkBufferSize <= 0 {
		cfg.SinkBufferSize = defaultSinkBuffer
	}
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	return &Executor{
		fs:         fs,
		dispatcher: dispatcher,
		logger:     logger,
		runID:      runID,
		cfg:        cfg,
	}
}

// Execute runs one attempt of task over session.
// prevRemoteSize is the remote size seen by the previous attempt of the same
// task, or domain.UnknownSize on the first attempt.
//
// The attempt ignores cancellation of ctx so a shutdown never cuts a file in
// the middle of a write; only the attempt timeout bounds it. A blocked remote
// call does not watch ctx, so the timeout aborts the whole session and the
// worker reconnects before its next attempt.
func (e *Executor) Execute(ctx context.Context, session port.RemoteSession, task domain.DownloadTask, prevRemoteSize int64) domain.TransferOutcome {
	start := time.Now()

	ctx = context.WithoutCancel(ctx)
	if e.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()

		stop := context.AfterFunc(ctx, session.Abort)
		defer stop()
	}

	if err := e.fs.EnsureDir(task.FinalPath); err != nil {
		return domain.Failed(domain.NewTransferError(domain.ReasonIO, err), 0, domain.UnknownSize, time.Since(start))
	}

	remoteSize, err := session.Stat(ctx, task.RemotePath)
	if err != nil {
		return domain.Failed(e.classify(ctx, err, domain.ReasonStat), 0, domain.UnknownSize, time.Since(start))
	}

	if task.HasExpectedSize() && task.ExpectedSize != remoteSize {
		e.logger.Debug("remote size differs from listing",
			zap.String("remote", task.RemotePath),
			zap.Int64("listed", task.ExpectedSize),
			zap.Int64("stat", remoteSize))
	}

	local, err := e.fs.Inspect(task)
	if err != nil {
		return domain.Failed(domain.NewTransferError(domain.ReasonIO, err), 0, remoteSize, time.Since(start))
	}

	plan := Plan(local, remoteSize)

	switch plan.Kind {
	case domain.PlanAlreadyComplete:
		switch plan.Source {
		case domain.SourceTemp:
			if err := e.fs.Finalize(task.TempPath, task.FinalPath); err != nil {
				return domain.FailedDuring(plan, domain.NewTransferError(domain.ReasonIO, err), 0, time.Since(start))
			}
		case domain.SourceFinal:
			if local.TempExists {
				if err := e.fs.RemoveFile(task.TempPath); err != nil {
					e.logger.Warn("failed to remove stale temp file",
						zap.String("temp", task.TempPath),
						zap.Error(err))
				}
			}
		}
		return domain.Skipped(plan, time.Since(start))

	case domain.PlanRestart:
		e.dispatcher.Dispatch(event.NewTempDiscarded(e.runID, task, local.TempSize, remoteSize))

	case domain.PlanResume:
		e.logger.Debug("resuming download",
			zap.String("remote", task.RemotePath),
			zap.Int64("from_byte", plan.Offset),
			zap.Int64("size", remoteSize))
	}

	return e.transfer(ctx, session, task, plan, prevRemoteSize, start)
}

// classify tags err with reason unless it already ended the session.
// Once the attempt timed out the session is aborted, whatever err says.
func (e *Executor) classify(ctx context.Context, err error, reason domain.FailureReason) error {
	if ctx.Err() != nil {
		return domain.NewTransferError(domain.ReasonIO,
			fmt.Errorf("attempt timed out after %s: %w: %w", e.cfg.AttemptTimeout, domain.ErrSessionLost, err))
	}
	if domain.IsSessionFatal(err) {
		return err
	}
	return domain.NewTransferError(reason, err)
}

func (e *Executor) transfer(
	ctx context.Context,
	session port.RemoteSession,
	task domain.DownloadTask,
	plan domain.ResumePlan,
	prevRemoteSize int64,
	start time.Time,
) domain.TransferOutcome {
	remoteSize := plan.RemoteSize

	body, err := session.OpenAt(ctx, task.RemotePath, plan.StartOffset())
	if err != nil {
		return domain.FailedDuring(plan, e.classify(ctx, err, domain.ReasonOf(err)), 0, time.Since(start))
	}
	defer body.Close()

	f, err := e.fs.OpenTemp(task.TempPath, plan.Truncates())
	if err != nil {
		return domain.FailedDuring(plan, domain.NewTransferError(domain.ReasonIO, err), 0, time.Since(start))
	}

	sink := bufio.NewWriterSize(f, e.cfg.SinkBufferSize)
	written, streamErr := e.stream(ctx, body, sink, task, plan)

	// whatever was received stays on disk as the next resume point
	flushErr := sink.Flush()
	syncErr := f.Sync()
	closeErr := f.Close()

	if streamErr != nil {
		return domain.FailedDuring(plan, e.classify(ctx, streamErr, domain.ReasonIO), written, time.Since(start))
	}
	if err := errors.Join(flushErr, syncErr, closeErr); err != nil {
		return domain.FailedDuring(plan, domain.NewTransferError(domain.ReasonIO, fmt.Errorf("failed to persist temp file: %w", err)), written, time.Since(start))
	}

	size, err := e.fs.FileSize(task.TempPath)
	if err != nil {
		return domain.FailedDuring(plan, domain.NewTransferError(domain.ReasonIO, err), written, time.Since(start))
	}
	if size != remoteSize {
		sentinel := domain.ErrSizeMismatch
		if prevRemoteSize != domain.UnknownSize && prevRemoteSize != remoteSize {
			sentinel = domain.ErrRemoteChanged
		}
		return domain.FailedDuring(plan, fmt.Errorf("%w: local %d bytes, remote %d bytes", sentinel, size, remoteSize), written, time.Since(start))
	}

	if err := e.fs.Finalize(task.TempPath, task.FinalPath); err != nil {
		return domain.FailedDuring(plan, domain.NewTransferError(domain.ReasonIO, err), written, time.Since(start))
	}

	return domain.Succeeded(plan, written, time.Since(start))
}

// stream copies body into sink with a fixed read buffer and returns the
// number of bytes accepted by the sink
func (e *Executor) stream(ctx context.Context, body io.Reader, sink io.Writer, task domain.DownloadTask, plan domain.ResumePlan) (int64, error) {
	buf := make([]byte, readBufferSize)
	progress := ratelimiter.New(e.cfg.ProgressInterval)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			m, err := sink.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, fmt.Errorf("failed to write temp file: %w", err)
			}

			if progress.Allow() {
				done := plan.StartOffset() + written
				e.logger.Debug("download progress",
					zap.String("remote", task.RemotePath),
					zap.Int64("bytes", done),
					zap.Int64("size", plan.RemoteSize),
					zap.Float64("percent", percent(done, plan.RemoteSize)))
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("failed to read remote file: %w", readErr)
		}
	}
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}
