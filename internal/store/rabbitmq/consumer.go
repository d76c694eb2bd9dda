package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const attemptHeader = "x-attempt"

// Handler processes one message. A returned error schedules a delayed retry.
type Handler func(ctx context.Context, m SessionMessage) error

type ConsumerConfig struct {
	Queue       string
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.Concurrency > 50 {
		c.Concurrency = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	return c
}

type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	cfg    ConsumerConfig
	logger *slog.Logger
}

func NewConsumer(url string, cfg ConsumerConfig, logger *slog.Logger) (*Consumer, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	conn, ch, err := dial(url, cfg.Queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(cfg.Concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, cfg: cfg, logger: logger}, nil
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run dispatches deliveries to a fixed pool of workers until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	msgs, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("consumer started", "queue", c.cfg.Queue, "concurrency", c.cfg.Concurrency)
	return c.dispatch(ctx, msgs, h)
}

// dispatch feeds deliveries to a fixed pool of workers. A delivery received
// after shutdown starts is requeued rather than handed to a worker.
func (c *Consumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery, h Handler) error {
	jobs := make(chan amqp.Delivery, c.cfg.Concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.cfg.Concurrency)
	for i := 0; i < c.cfg.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.handle(ctx, workerID, d, h)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq: delivery channel closed")
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				c.logger.Info("consumer shutting down")
				return nil
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, workerID int, d amqp.Delivery, h Handler) {
	m, err := decodeMessage(d.Body)
	if err != nil {
		c.logger.Warn("bad message", "worker", workerID, "err", err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err = h(ctx, m)
	if err == nil {
		if err := d.Ack(false); err != nil {
			c.logger.Error("ack failed", "worker", workerID, "session_id", m.SessionID, "err", err)
		}
		return
	}

	attempt := attemptOf(d.Headers) + 1
	log := c.logger.With("worker", workerID, "session_id", m.SessionID, "attempt", attempt, "cost", time.Since(start), "err", err)
	if attempt >= c.cfg.MaxAttempts {
		log.Error("session drive failed, dead-lettering")
		_ = d.Nack(false, false)
		return
	}
	if err := c.retry(ctx, d, attempt); err != nil {
		log.Error("retry publish failed", "retry_err", err)
		_ = d.Nack(false, false)
		return
	}
	log.Warn("session drive failed, retry scheduled", "delay", c.cfg.RetryDelay)
	_ = d.Ack(false)
}

func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, attempt int) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return c.ch.PublishWithContext(cctx, "", retryQueue(c.cfg.Queue), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Timestamp:    time.Now(),
		Expiration:   strconv.FormatInt(c.cfg.RetryDelay.Milliseconds(), 10),
		Headers:      amqp.Table{attemptHeader: int32(attempt)},
	})
}

func decodeMessage(body []byte) (SessionMessage, error) {
	var m SessionMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return m, err
	}
	if m.SessionID == "" {
		return m, errors.New("rabbitmq: message without session_id")
	}
	return m, nil
}

func attemptOf(h amqp.Table) int {
	switch v := h[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
