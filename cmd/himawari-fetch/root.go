package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/config"
	"github.com/vertextoedge/himawari-fetch/internal/logger"
)

var version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "himawari-fetch",
	Short:         "Resumable parallel SFTP downloader for Himawari HSD files",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newFetchCmd(),
		newCheckCmd(),
		newCleanCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)
}

// loadConfig loads the config file with the given flag overrides and
// initializes the global logger from it
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, *zap.Logger, error) {
	flags := []config.FlagBinding{
		{Key: "logging.level", Flag: cmd.Flags().Lookup("log-level")},
	}
	for key, name := range bindings {
		flags = append(flags, config.FlagBinding{Key: key, Flag: cmd.Flags().Lookup(name)})
	}

	cfg, err := config.Load(configPath, flags...)
	if err != nil {
		return nil, nil, err
	}

	err = logger.Init(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger.GetZapLogger(), nil
}
