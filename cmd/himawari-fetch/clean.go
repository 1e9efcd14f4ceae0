package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/adapter/filesystem"
	"github.com/vertextoedge/himawari-fetch/internal/adapter/sqlite"
	"github.com/vertextoedge/himawari-fetch/internal/port"
	"github.com/vertextoedge/himawari-fetch/internal/service/maintenance"
)

func newCleanCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale temp files and prune the run journal",
		Long: `Temp files are resume checkpoints. clean only removes those older than
maintenance.temp_max_age (or --older-than), which are unlikely to be resumed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, map[string]string{
				"download.base_dir":        "base-dir",
				"maintenance.temp_max_age": "older-than",
			})
			if err != nil {
				return err
			}
			defer log.Sync()

			fsManager, err := filesystem.NewManagerWithSuffix(cfg.Download.BaseDir, cfg.Download.TempSuffix)
			if err != nil {
				return fmt.Errorf("failed to create filesystem manager: %w", err)
			}

			var journal port.RunJournal
			if _, err := os.Stat(cfg.DatabasePath()); err == nil {
				j, err := sqlite.Open(cfg.DatabasePath())
				if err != nil {
					return fmt.Errorf("failed to open run journal: %w", err)
				}
				defer j.Close()
				journal = j
			}

			svc := maintenance.New(&maintenance.Config{
				TempFileMaxAge:   cfg.Maintenance.GetTempMaxAge(),
				JournalRetention: cfg.Database.GetRetention(),
				RemoveEmptyDirs:  true,
			}, fsManager, journal, log)

			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return svc.Start(ctx)
			}

			result, err := svc.RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d temp file(s), pruned %d run(s)\n", result.TempFiles, result.Runs)
			if err != nil {
				log.Error("cleanup incomplete", zap.Error(err))
			}
			return err
		},
	}

	cmd.Flags().StringP("base-dir", "o", "", "Download directory")
	cmd.Flags().String("older-than", "", "Remove temp files older than this (e.g. 72h)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and clean every hour")

	return cmd
}
