package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/adapter/filesystem"
	"github.com/vertextoedge/himawari-fetch/internal/adapter/sftp"
	"github.com/vertextoedge/himawari-fetch/internal/adapter/sqlite"
	"github.com/vertextoedge/himawari-fetch/internal/catalog"
	"github.com/vertextoedge/himawari-fetch/internal/config"
	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
	"github.com/vertextoedge/himawari-fetch/internal/metrics"
	"github.com/vertextoedge/himawari-fetch/internal/report"
	"github.com/vertextoedge/himawari-fetch/internal/service/fetcher"
	"github.com/vertextoedge/himawari-fetch/internal/service/server"
)

func newFetchCmd() *cobra.Command {
	var (
		start, end string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download every HSD file of a time range",
		Example: `  himawari-fetch fetch --start "2024-01-01 00:00" --end "2024-01-01 02:00" --bands visible
  himawari-fetch fetch --start 202401010000 --bands 13 --workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}

			cfg, log, err := loadConfig(cmd, map[string]string{
				"download.workers":    "workers",
				"download.base_dir":   "base-dir",
				"download.scheduling": "scheduling",
				"remote.bands":        "bands",
				"metrics.bind_addr":   "metrics-addr",
			})
			if err != nil {
				return err
			}
			defer log.Sync()

			return runFetch(cmd, cfg, log, from, to, dryRun)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First observation time, UTC (e.g. \"2024-01-01 00:00\")")
	cmd.Flags().StringVar(&end, "end", "", "Last observation time, UTC; defaults to --start")
	cmd.Flags().StringP("bands", "b", "", "Bands: visible, all or a list such as 1,2,13")
	cmd.Flags().IntP("workers", "w", 0, "Number of parallel SFTP sessions")
	cmd.Flags().StringP("base-dir", "o", "", "Download directory")
	cmd.Flags().String("scheduling", "", "Task scheduling: static or queue")
	cmd.Flags().String("metrics-addr", "", "Serve /health, /metrics and /status on this address")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the files that would be downloaded and exit")

	return cmd
}

func runFetch(cmd *cobra.Command, cfg *config.Config, log *zap.Logger, from, to time.Time, dryRun bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting himawari-fetch",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.Time("start", from),
		zap.Time("end", to),
		zap.Strings("bands", cfg.Remote.GetBands()),
		zap.Int("workers", cfg.Download.Workers))

	fsManager, err := filesystem.NewManagerWithSuffix(cfg.Download.BaseDir, cfg.Download.TempSuffix)
	if err != nil {
		return fmt.Errorf("failed to create filesystem manager: %w", err)
	}

	factory, err := sftp.NewFactory(sftp.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Username:       cfg.Server.Username,
		Password:       cfg.Server.Password,
		PrivateKeyPath: cfg.Server.PrivateKeyPath,
		KnownHostsPath: cfg.Server.KnownHostsPath,
		DialTimeout:    cfg.Server.GetDialTimeout(),
		MaxPacket:      cfg.Server.MaxPacket,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to configure SFTP: %w", err)
	}

	tasks, err := listTasks(ctx, factory, cfg, log, from, to)
	if err != nil {
		return err
	}
	log.Info("remote listing complete", zap.Int("files", len(tasks)))

	if dryRun {
		for _, task := range tasks {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", task.RemotePath, report.Bytes(task.ExpectedSize), task.FinalPath)
		}
		return nil
	}

	journal, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open run journal: %w", err)
	}
	defer journal.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dispatcher := event.NewInMemoryDispatcher(log)
	dispatcher.Subscribe(event.NewLoggingHandler(log))
	dispatcher.Subscribe(metrics.NewHandler(metrics.New(registry)))
	dispatcher.Subscribe(sqlite.NewJournalHandler(journal, log))

	engine := fetcher.New(fetcher.Config{
		Workers:          cfg.Download.Workers,
		MaxRetries:       cfg.Download.MaxRetries,
		RetryDelay:       cfg.Download.GetRetryDelay(),
		AttemptTimeout:   cfg.Download.GetAttemptTimeout(),
		SinkBufferSize:   cfg.Download.GetBufferSize(),
		ProgressInterval: cfg.Download.GetProgressInterval(),
		Scheduling:       cfg.Download.Scheduling,
	}, factory, fsManager, dispatcher, log)

	if cfg.Metrics.BindAddr != "" {
		serverCfg := server.DefaultConfig()
		serverCfg.BindAddr = cfg.Metrics.BindAddr
		httpServer := server.New(serverCfg, server.Deps{
			Gatherer: registry,
			Live:     engine,
			Journal:  journal,
			Store:    journal,
		}, log)

		go func() {
			if err := httpServer.Start(); err != nil {
				log.Error("HTTP server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Stop(shutdownCtx); err != nil {
				log.Error("failed to stop HTTP server gracefully", zap.Error(err))
			}
		}()
	}

	summary, err := engine.Run(ctx, tasks)
	if err != nil {
		return err
	}

	report.Summary(cmd.OutOrStdout(), summary)

	if ctx.Err() != nil {
		return errors.New("interrupted, rerun the same command to resume")
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.TotalTasks)
	}
	return nil
}

// listTasks enumerates the remote files of the range over one dedicated session
func listTasks(ctx context.Context, factory *sftp.Factory, cfg *config.Config, log *zap.Logger, from, to time.Time) ([]domain.DownloadTask, error) {
	session, err := factory.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", factory.Addr(), err)
	}
	defer session.Close()

	tasks, err := catalog.NewBuilder(layoutOf(cfg), log).Build(ctx, session, queryOf(cfg, from, to))
	if err != nil {
		return nil, fmt.Errorf("failed to list remote files: %w", err)
	}
	return tasks, nil
}
