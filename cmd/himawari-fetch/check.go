package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vertextoedge/himawari-fetch/internal/catalog"
	"github.com/vertextoedge/himawari-fetch/internal/report"
)

func newCheckCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report which bands of a time range are complete on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}

			cfg, log, err := loadConfig(cmd, map[string]string{
				"download.base_dir": "base-dir",
				"remote.bands":      "bands",
			})
			if err != nil {
				return err
			}
			defer log.Sync()

			r, err := catalog.Completeness(layoutOf(cfg), queryOf(cfg, from, to))
			if err != nil {
				return err
			}

			report.Completeness(cmd.OutOrStdout(), r)
			if missing := r.Missing(); missing > 0 {
				return fmt.Errorf("%d slot/band pair(s) incomplete", missing)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First observation time, UTC")
	cmd.Flags().StringVar(&end, "end", "", "Last observation time, UTC; defaults to --start")
	cmd.Flags().StringP("bands", "b", "", "Bands: visible, all or a list such as 1,2,13")
	cmd.Flags().StringP("base-dir", "o", "", "Download directory")

	return cmd
}
