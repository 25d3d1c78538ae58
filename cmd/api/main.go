package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/sentinel-chat/internal/app"
	"github.com/suPer8Hu/sentinel-chat/internal/config"
	"github.com/suPer8Hu/sentinel-chat/internal/httpapi"
	"github.com/suPer8Hu/sentinel-chat/internal/observability"
	"go.uber.org/zap"
)

func main() {
	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load(logger)

	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httpapi.Serve(ctx, a); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}
