package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler builds one index. A returned error triggers a retry until
// MaxAttempts is reached; after that the job lands in the DLQ.
type Handler func(ctx context.Context, indexID string) error

type ConsumerOptions struct {
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	opts   ConsumerOptions
	logger *zap.Logger
}

func NewConsumer(url, queue string, opts ConsumerOptions, logger *zap.Logger) (*Consumer, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	// strict concurrency control
	if err := ch.Qos(opts.Concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, opts: opts, logger: logger}, nil
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run consumes until ctx is done or the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("worker started", zap.String("queue", c.queue), zap.Int("concurrency", c.opts.Concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, c.opts.Concurrency*2)
	var mu sync.Mutex // amqp channels are not safe for concurrent publishes

	var wg sync.WaitGroup
	wg.Add(c.opts.Concurrency)
	for i := 0; i < c.opts.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, &mu, workerID, d, handle)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

func (c *Consumer) process(ctx context.Context, mu *sync.Mutex, workerID int, d amqp.Delivery, handle Handler) {
	log := c.logger.With(zap.Int("worker", workerID))

	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.IndexID == "" {
		log.Warn("bad message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	log = log.With(zap.String("index_id", m.IndexID))

	n := attempt(d)
	start := time.Now()
	err := handle(ctx, m.IndexID)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Warn("ack failed", zap.Error(err))
		}
		log.Debug("job done", zap.Duration("cost", time.Since(start)))
		return
	}

	log.Warn("job failed", zap.Int("attempt", n), zap.Duration("cost", time.Since(start)), zap.Error(err))
	if n >= c.opts.MaxAttempts {
		_ = d.Nack(false, false)
		return
	}

	mu.Lock()
	perr := publish(ctx, c.ch, c.queue+".retry", m.IndexID, n+1, c.opts.RetryDelay)
	mu.Unlock()
	if perr != nil {
		log.Error("schedule retry failed", zap.Error(perr))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
