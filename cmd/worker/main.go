package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/sentinel-chat/internal/app"
	"github.com/suPer8Hu/sentinel-chat/internal/config"
	"github.com/suPer8Hu/sentinel-chat/internal/observability"
	"github.com/suPer8Hu/sentinel-chat/internal/worker"
	"go.uber.org/zap"
)

func main() {
	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load(logger)

	// the worker builds indexes itself, it never enqueues
	a, err := app.New(cfg, logger, app.Options{NoQueue: true})
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx, a); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
