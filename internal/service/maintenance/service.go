package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// TempFileMaxAge is the age after which a temp file is no longer worth resuming
	TempFileMaxAge time.Duration

	// JournalRetention is how long runs stay in the journal
	JournalRetention time.Duration

	// CleanupInterval is how often Start repeats the cleanup
	CleanupInterval time.Duration

	// RemoveEmptyDirs removes directories left empty under the base directory
	RemoveEmptyDirs bool
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		TempFileMaxAge:   72 * time.Hour,
		JournalRetention: 30 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
		RemoveEmptyDirs:  true,
	}
}

// Result counts what one cleanup removed
type Result struct {
	TempFiles int
	Runs      int64
}

// Service removes stale temp files and prunes the run journal.
// Temp files are resume checkpoints, so cleanup never runs implicitly before
// a download; it is started on demand.
type Service struct {
	config  *Config
	fs      port.FileSystem
	journal port.RunJournal
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service. journal may be nil.
func New(cfg *Config, fs port.FileSystem, journal port.RunJournal, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = 72 * time.Hour
	}
	if cfg.JournalRetention == 0 {
		cfg.JournalRetention = 30 * 24 * time.Hour
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:  cfg,
		fs:      fs,
		journal: journal,
		logger:  logger,
	}
}

// RunOnce performs one cleanup pass. Every step runs even if an earlier one
// failed; the errors are joined.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	var (
		result Result
		errs   []error
	)

	n, err := s.fs.CleanOldTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to clean temp files: %w", err))
	} else if n > 0 {
		s.logger.Info("cleaned up old temp files", zap.Int("count", n))
	}
	result.TempFiles = n

	if s.config.RemoveEmptyDirs {
		if err := s.fs.CleanEmptyDirs(); err != nil {
			s.logger.Error("failed to remove empty directories", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to clean empty directories: %w", err))
		}
	}

	if s.journal != nil {
		pruned, err := s.journal.PruneOlderThan(ctx, s.config.JournalRetention)
		if err != nil {
			s.logger.Error("failed to prune run journal", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to prune journal: %w", err))
		} else if pruned > 0 {
			s.logger.Info("pruned old runs from journal", zap.Int64("count", pruned))
		}
		result.Runs = pruned
	}

	return result, errors.Join(errs...)
}

// Start runs a cleanup immediately and then every CleanupInterval until ctx
// is canceled or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("cleanup_interval", s.config.CleanupInterval),
		zap.Duration("temp_max_age", s.config.TempFileMaxAge))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		// errors are already logged
		_, _ = s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
