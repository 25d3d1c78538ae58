// Package worker builds document indexes handed over through RabbitMQ.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/sentinel-chat/internal/app"
	"github.com/suPer8Hu/sentinel-chat/internal/store/rabbitmq"
	"go.uber.org/zap"
)

// Run consumes indexing jobs until ctx is done.
func Run(ctx context.Context, a *app.App) error {
	if a.Cfg.RabbitURL == "" {
		return errors.New("RABBIT_URL is required to run the worker")
	}
	log := a.Logger.Named("worker")

	consumer, err := rabbitmq.NewConsumer(a.Cfg.RabbitURL, a.Cfg.RabbitQueue, rabbitmq.ConsumerOptions{
		Concurrency: a.Cfg.WorkerConcurrency,
		MaxAttempts: a.Cfg.JobMaxAttempts,
	}, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	return consumer.Run(ctx, func(ctx context.Context, indexID string) error {
		start := time.Now()
		err := a.Docs.Build(ctx, indexID)
		if cost := time.Since(start); cost > 2*time.Second {
			log.Info("job_timing", zap.String("index_id", indexID), zap.Duration("total", cost), zap.Error(err))
		}
		return err
	})
}
