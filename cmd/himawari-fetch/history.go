package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vertextoedge/himawari-fetch/internal/adapter/sqlite"
	"github.com/vertextoedge/himawari-fetch/internal/report"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs, or the failures of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			defer log.Sync()

			journal, err := sqlite.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("failed to open run journal: %w", err)
			}
			defer journal.Close()

			if runID != "" {
				failures, err := journal.ListFailures(cmd.Context(), runID)
				if err != nil {
					return err
				}
				report.Failures(cmd.OutOrStdout(), runID, failures)
				return nil
			}

			runs, err := journal.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			report.History(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the failed files of this run ID")

	return cmd
}
