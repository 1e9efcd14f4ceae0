package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// Config contains engine configuration
type Config struct {
	Workers          int
	MaxRetries       int
	RetryDelay       time.Duration
	AttemptTimeout   time.Duration
	SinkBufferSize   int
	ProgressInterval time.Duration
	Scheduling       string
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		Workers:          4,
		MaxRetries:       3,
		RetryDelay:       2 * time.Second,
		SinkBufferSize:   defaultSinkBuffer,
		ProgressInterval: 5 * time.Second,
		Scheduling:       SchedulingStatic,
	}
}

// Engine downloads a task list with a fixed pool of workers
type Engine struct {
	cfg        Config
	factory    port.SessionFactory
	fs         port.FileSystem
	dispatcher event.EventDispatcher
	logger     *zap.Logger

	mu        sync.Mutex
	live      *Aggregator
	liveRunID string
}

// New creates a new Engine
func New(
	cfg Config,
	factory port.SessionFactory,
	fs port.FileSystem,
	dispatcher event.EventDispatcher,
	logger *zap.Logger,
) *Engine {
	if cfg.Scheduling == "" {
		cfg.Scheduling = SchedulingStatic
	}
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		factory:    factory,
		fs:         fs,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run downloads all tasks and blocks until every worker has finished.
// Failed tasks are part of the summary, not an error; the error is only set
// when the engine was misconfigured and no work was done.
//
// Canceling ctx lets in-flight attempts finish and reports the remaining
// tasks as canceled.
func (e *Engine) Run(ctx context.Context, tasks []domain.DownloadTask) (domain.RunSummary, error) {
	if e.cfg.Workers < 1 {
		return domain.RunSummary{}, fmt.Errorf("%w: got %d", domain.ErrInvalidWorkerCount, e.cfg.Workers)
	}
	if e.cfg.Scheduling != SchedulingStatic && e.cfg.Scheduling != SchedulingQueue {
		return domain.RunSummary{}, fmt.Errorf("%w: unknown scheduling %q", domain.ErrInvalidInput, e.cfg.Scheduling)
	}
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			return domain.RunSummary{}, err
		}
	}

	runID := uuid.NewString()
	if len(tasks) == 0 {
		e.logger.Info("nothing to download")
		return domain.RunSummary{RunID: runID}, nil
	}

	e.preflight(tasks)

	stats := NewAggregator(len(tasks))
	e.setLive(runID, stats)

	sources, err := e.sources(tasks)
	if err != nil {
		return domain.RunSummary{}, err
	}

	e.dispatcher.Dispatch(event.NewRunStarted(runID, len(tasks), len(sources)))

	report := &reporter{runID: runID, stats: stats, dispatcher: e.dispatcher}
	executor := NewExecutor(e.fs, e.dispatcher, e.logger, runID, ExecutorConfig{
		SinkBufferSize:   e.cfg.SinkBufferSize,
		AttemptTimeout:   e.cfg.AttemptTimeout,
		ProgressInterval: e.cfg.ProgressInterval,
	})
	retry := RetryPolicy{MaxRetries: e.cfg.MaxRetries, Delay: e.cfg.RetryDelay}

	var wg sync.WaitGroup
	for i, source := range sources {
		worker := newWorker(i+1, e.factory, executor, source, retry, report, e.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}
	wg.Wait()

	// a shared queue outlives its workers when all of them lost their sessions
	if e.cfg.Scheduling == SchedulingQueue {
		e.drain(ctx, sources[0], report)
	}

	summary := stats.Snapshot()
	summary.RunID = runID
	e.dispatcher.Dispatch(event.NewRunFinished(runID, summary))

	return summary, nil
}

// Live returns the summary of the current or last run
func (e *Engine) Live() (domain.RunSummary, bool) {
	e.mu.Lock()
	stats, runID := e.live, e.liveRunID
	e.mu.Unlock()

	if stats == nil {
		return domain.RunSummary{}, false
	}
	summary := stats.Live()
	summary.RunID = runID
	return summary, true
}

func (e *Engine) setLive(runID string, stats *Aggregator) {
	e.mu.Lock()
	e.live, e.liveRunID = stats, runID
	e.mu.Unlock()
}

// sources builds one source per worker. Workers that would get no task are
// not started.
func (e *Engine) sources(tasks []domain.DownloadTask) ([]TaskSource, error) {
	if e.cfg.Scheduling == SchedulingQueue {
		queue := NewQueueSource(tasks)
		n := min(e.cfg.Workers, len(tasks))
		sources := make([]TaskSource, n)
		for i := range sources {
			sources[i] = queue
		}
		return sources, nil
	}

	slices, err := Partition(tasks, e.cfg.Workers)
	if err != nil {
		return nil, err
	}

	sources := make([]TaskSource, 0, len(slices))
	for _, slice := range slices {
		if len(slice) == 0 {
			continue
		}
		sources = append(sources, NewSliceSource(slice))
	}
	return sources, nil
}

func (e *Engine) drain(ctx context.Context, source TaskSource, report *reporter) {
	var cause error = domain.NewTransferError(domain.ReasonSessionUnavailable, domain.ErrSessionUnavailable)
	if ctx.Err() != nil {
		cause = fmt.Errorf("%w: %w", domain.ErrCanceled, ctx.Err())
	}

	for {
		task, ok := source.Next()
		if !ok {
			return
		}
		report.notStarted(0, task, cause)
	}
}

// preflight warns when the listed sizes do not fit on the target disk.
// Files already on disk are counted too, so the warning can be pessimistic.
func (e *Engine) preflight(tasks []domain.DownloadTask) {
	var need uint64
	for _, task := range tasks {
		if task.HasExpectedSize() {
			need += uint64(task.ExpectedSize)
		}
	}

	usage, err := e.fs.GetDiskUsage()
	if err != nil {
		e.logger.Warn("failed to check disk space", zap.Error(err))
		return
	}

	if usage.Free < need {
		e.logger.Warn("disk space may be insufficient",
			zap.String("required", humanize.IBytes(need)),
			zap.String("free", humanize.IBytes(usage.Free)),
			zap.String("dir", e.fs.RootDir()))
		return
	}

	e.logger.Debug("disk space check passed",
		zap.String("required", humanize.IBytes(need)),
		zap.String("free", humanize.IBytes(usage.Free)))
}
