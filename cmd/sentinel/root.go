package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/sentinel-chat/internal/app"
	"github.com/suPer8Hu/sentinel-chat/internal/config"
	"github.com/suPer8Hu/sentinel-chat/internal/observability"
	"go.uber.org/zap"
)

var (
	logLevel string
	dsn      string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Gated multi-agent chat",
	Long: `sentinel runs a chat front-end whose messages pass a sensitivity gate
before an agent answers them. Transcripts are kept per user and per chat.

Quick Start:
  sentinel serve                 # HTTP API
  sentinel chat --user me@x.io   # chat in the terminal
  sentinel worker                # build uploaded document indexes`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database DSN (overrides DB_DSN); use sqlite:<file> for a local file")
}

// setup loads config and the app shared by every subcommand.
func setup(opts app.Options) (*app.App, *zap.Logger, error) {
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	logger, err := observability.NewLogger(level)
	if err != nil {
		return nil, nil, err
	}
	cfg := config.Load(logger)
	if dsn != "" {
		cfg.DBDSN = dsn
	}
	a, err := app.New(cfg, logger, opts)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}
