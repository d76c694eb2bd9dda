package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/w3a11y-artisan/internal/app"
	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/bulkdriver"
	"github.com/suPer8Hu/w3a11y-artisan/internal/logger"
	"github.com/suPer8Hu/w3a11y-artisan/internal/store/rabbitmq"
)

func newWorkerCmd() *cobra.Command {
	var (
		concurrency int
		maxAttempts int
		retryDelay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Drive queued bulk alt text sessions to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}
			defer d.Close()
			l := logger.Service(d.logger, "worker")

			if concurrency <= 0 {
				concurrency = d.cfg.WorkerConcurrency
			}
			svc := app.NewServices(d.db, d.rdb, d.cfg, d.logger)
			driver := bulkdriver.New(svc.Bulk, d.logger)

			consumer, err := rabbitmq.NewConsumer(d.cfg.RabbitURL, rabbitmq.ConsumerConfig{
				Queue:       d.cfg.RabbitQueue,
				Concurrency: concurrency,
				MaxAttempts: maxAttempts,
				RetryDelay:  retryDelay,
			}, d.logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			l.Info("worker started", "queue", d.cfg.RabbitQueue, "concurrency", concurrency)
			return consumer.Run(ctx, func(ctx context.Context, m rabbitmq.SessionMessage) error {
				owner, err := svc.Bulk.Owner(ctx, m.SessionID)
				if apperr.Is(err, apperr.CodeSession) {
					l.Warn("dropping expired session", "session_id", m.SessionID)
					return nil
				}
				if err != nil {
					return err
				}
				if owner != m.UserID {
					l.Warn("dropping session with mismatched owner", "session_id", m.SessionID, "user_id", m.UserID)
					return nil
				}
				return driver.Drive(ctx, m.SessionID)
			})
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Parallel sessions (defaults to WORKER_CONCURRENCY)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 5, "Deliveries before a session message is dead-lettered")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", 30*time.Second, "Delay before a failed session is redelivered")
	return cmd
}
