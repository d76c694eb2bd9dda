// Package bulkdriver runs a bulk alt text session server-side, the same loop the
// admin page runs in the browser.
package bulkdriver

import (
	"context"
	"log/slog"
	"time"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/bulk"
)

type BatchRunner interface {
	ProcessNextBatch(ctx context.Context, sessionID string) (*bulk.Progress, error)
}

type Driver struct {
	runner BatchRunner
	// MaxFailures stops driving after this many consecutive failed batches.
	MaxFailures int
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(runner BatchRunner, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{runner: runner, MaxFailures: 5, logger: logger, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Drive processes batches until the session leaves the running state.
// Session errors end the drive quietly: the session is finished, gone, or driven elsewhere.
// Other errors are returned so the caller can retry later.
func (d *Driver) Drive(ctx context.Context, sessionID string) error {
	log := d.logger.With("session_id", sessionID)
	failures := 0
	for {
		pr, err := d.runner.ProcessNextBatch(ctx, sessionID)
		if err != nil {
			if apperr.Is(err, apperr.CodeSession) {
				log.Info("bulk drive stopped", "reason", apperr.From(err).Message)
				return nil
			}
			return err
		}
		if pr.Finished() {
			log.Info("bulk drive finished", "status", pr.Status,
				"processed", pr.Processed, "skipped", pr.Skipped, "failed", pr.Failed)
			return nil
		}

		if len(pr.BatchResults) == 0 && pr.LastError != nil {
			failures++
			if pr.LastError.Code == string(apperr.CodeAuth) {
				log.Warn("bulk drive stopped on auth error", "message", pr.LastError.Message)
				return nil
			}
			if d.MaxFailures > 0 && failures >= d.MaxFailures {
				log.Warn("bulk drive giving up after repeated failures", "failures", failures)
				return nil
			}
		} else {
			failures = 0
		}

		if err := d.sleep(ctx, time.Duration(pr.RetryAfterMS)*time.Millisecond); err != nil {
			return err
		}
	}
}
