package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/sentinel-chat/internal/app"
	"github.com/suPer8Hu/sentinel-chat/internal/httpapi"
	"github.com/suPer8Hu/sentinel-chat/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, logger, err := setup(app.Options{})
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return httpapi.Serve(ctx, a)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume document indexing jobs from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, logger, err := setup(app.Options{NoQueue: true})
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return worker.Run(ctx, a)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
}
