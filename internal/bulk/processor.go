package bulk

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/media"
	"github.com/suPer8Hu/w3a11y-artisan/internal/remote"
)

const (
	MsgNoImages      = "No images found matching the selected criteria."
	msgInvalidSess   = "Invalid or expired bulk processing session."
	msgNotRunning    = "This bulk processing session is not running."
	msgInProgress    = "A batch is already in progress for this session."
	msgNotResumable  = "This bulk processing session cannot be resumed."
	msgAlreadyClosed = "This bulk processing session has already finished."

	// StatusInsufficientCredits is reported to callers when a batch pauses on a 402.
	StatusInsufficientCredits = "insufficient_credits"

	maxRetryAfter = 60 * time.Second
)

// AltTextAPI is the part of the remote client the processor needs.
type AltTextAPI interface {
	AltTextConfig(ctx context.Context) (*remote.AltTextConfigResponse, error)
	GenerateAltTextBatch(ctx context.Context, req remote.AltTextBatchRequest) (*remote.AltTextBatchResponse, error)
}

type Library interface {
	FilterForBulk(ctx context.Context, f media.Filter) ([]media.Attachment, error)
	UpdateAltText(ctx context.Context, id int64, alt string) (string, error)
}

type Notifier interface {
	LowCredits(ctx context.Context, userID uint64)
}

type Config struct {
	DefaultBatchSize int
	PollDelay        time.Duration
	SessionTTL       time.Duration
	ResumableTTL     time.Duration
	CancelledTTL     time.Duration
	// Lease bounds how long one batch may hold the session.
	Lease time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultBatchSize <= 0 {
		c.DefaultBatchSize = 8
	}
	if c.PollDelay <= 0 {
		c.PollDelay = 2 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.ResumableTTL <= 0 {
		c.ResumableTTL = 7 * 24 * time.Hour
	}
	if c.CancelledTTL <= 0 {
		c.CancelledTTL = 24 * time.Hour
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	return c
}

type Processor struct {
	store    Store
	api      AltTextAPI
	lib      Library
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(store Store, api AltTextAPI, lib Library, notifier Notifier, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:    store,
		api:      api,
		lib:      lib,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type StartResult struct {
	SessionID    string `json:"session_id"`
	TotalImages  int    `json:"total_images"`
	BatchSize    int    `json:"batch_size"`
	TotalBatches int    `json:"total_batches"`
	PollDelayMS  int64  `json:"poll_delay_ms"`
}

type ImageResult struct {
	AttachmentID int64  `json:"attachment_id"`
	Success      bool   `json:"success"`
	Skipped      bool   `json:"skipped,omitempty"`
	AltText      string `json:"alt_text,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Progress is what every session operation reports back to the driver.
type Progress struct {
	SessionID    string        `json:"session_id"`
	Status       string        `json:"status"`
	Processed    int           `json:"processed"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	Total        int           `json:"total"`
	CurrentBatch int           `json:"current_batch"`
	TotalBatches int           `json:"total_batches"`
	Percentage   int           `json:"percentage"`
	CanResume    bool          `json:"canResume"`
	BatchResults []ImageResult `json:"batch_results,omitempty"`
	LastError    *LastError    `json:"last_error,omitempty"`
	RetryAfterMS int64         `json:"retry_after_ms"`
	Message      string        `json:"message,omitempty"`
}

// Finished reports whether the driver should stop polling.
func (p *Progress) Finished() bool {
	switch Status(p.Status) {
	case StatusRunning:
		return false
	default:
		return true
	}
}

func (p *Processor) progress(s *Session) *Progress {
	pr := &Progress{
		SessionID:    s.ID,
		Status:       string(s.Status),
		Processed:    s.Processed,
		Failed:       s.Failed,
		Skipped:      s.Skipped,
		Total:        s.Total(),
		CurrentBatch: s.CurrentBatch,
		TotalBatches: s.TotalBatches(),
		CanResume:    s.IsResumable(),
		LastError:    s.LastError,
		RetryAfterMS: p.retryAfter(s.ConsecutiveFailures).Milliseconds(),
	}
	if pr.Total > 0 {
		pr.Percentage = min(100, s.Done()*100/pr.Total)
	}
	return pr
}

// retryAfter doubles the poll delay for each consecutive failed batch.
func (p *Processor) retryAfter(failures int) time.Duration {
	d := p.cfg.PollDelay
	for i := 0; i < failures && d < maxRetryAfter; i++ {
		d *= 2
	}
	return min(d, maxRetryAfter)
}

func (p *Processor) ttlFor(s *Session) time.Duration {
	switch s.Status {
	case StatusPausedCredits, StatusCancelledResumable:
		return p.cfg.ResumableTTL
	case StatusCancelled:
		return p.cfg.CancelledTTL
	default:
		return p.cfg.SessionTTL
	}
}

func sessionErr(err error) error {
	if errors.Is(err, ErrSessionNotFound) {
		return apperr.Session(msgInvalidSess)
	}
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal(err, "Failed to update the bulk processing session.")
}

// Start snapshots the work-list and opens a running session.
func (p *Processor) Start(ctx context.Context, userID uint64, opts Options) (*StartResult, error) {
	atts, err := p.lib.FilterForBulk(ctx, media.Filter{
		OnlyAttached:      opts.OnlyAttached,
		OverwriteExisting: opts.OverwriteExisting,
		SkipProcessed:     opts.SkipProcessed,
	})
	if err != nil {
		return nil, apperr.Internal(err, "Failed to query the media library.")
	}
	if len(atts) == 0 {
		return nil, apperr.Validation(MsgNoImages)
	}

	batchSize := p.cfg.DefaultBatchSize
	if rc, err := p.api.AltTextConfig(ctx); err != nil {
		p.logger.Warn("alt text config unavailable, using default batch size", "err", err, "batch_size", batchSize)
	} else if rc.BatchSize > 0 {
		batchSize = rc.BatchSize
	}

	images := make([]Image, 0, len(atts))
	for _, a := range atts {
		images = append(images, Image{
			AttachmentID: a.ID,
			ImageURL:     a.URL,
			Context:      a.Context,
			Title:        a.Title,
			CurrentAlt:   a.Alt(),
		})
	}

	s := &Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		Images:           images,
		Options:          opts,
		ServerConfig:     ServerConfig{BatchSize: batchSize},
		Status:           StatusRunning,
		CompletedBatches: []BatchSummary{},
	}
	if err := p.store.Create(ctx, s, p.cfg.SessionTTL); err != nil {
		return nil, apperr.Internal(err, "Failed to create the bulk processing session.")
	}

	p.logger.Info("bulk session started", "session_id", s.ID, "user_id", userID, "images", len(images), "batch_size", batchSize)
	return &StartResult{
		SessionID:    s.ID,
		TotalImages:  len(images),
		BatchSize:    batchSize,
		TotalBatches: s.TotalBatches(),
		PollDelayMS:  p.cfg.PollDelay.Milliseconds(),
	}, nil
}

// ProcessNextBatch runs exactly one slice of a running session.
func (p *Processor) ProcessNextBatch(ctx context.Context, sessionID string) (*Progress, error) {
	release, ok, err := p.store.Acquire(ctx, sessionID, p.cfg.Lease)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to lock the bulk processing session.")
	}
	if !ok {
		return nil, apperr.Session(msgInProgress)
	}
	defer release()

	s, err := p.store.Get(ctx, sessionID)
	if err != nil {
		return nil, sessionErr(err)
	}
	if s.Status != StatusRunning {
		return nil, apperr.Session(msgNotRunning).WithDetails("status", string(s.Status))
	}

	batch := s.CurrentBatch
	slice := s.NextSlice()
	if len(slice) == 0 {
		s, err = p.store.Update(ctx, sessionID, func(cur *Session) (time.Duration, error) {
			if cur.Status == StatusRunning {
				cur.Status = StatusCompleted
			}
			return p.ttlFor(cur), nil
		})
		if err != nil {
			return nil, sessionErr(err)
		}
		return p.progress(s), nil
	}

	req := remote.AltTextBatchRequest{
		Mode:   "batch",
		Images: make([]remote.BatchImage, 0, len(slice)),
		Options: remote.BatchOptions{
			Language:           s.Options.Language,
			MaxLength:          s.Options.MaxLength,
			CustomInstructions: s.Options.CustomInstructions,
			SkipProcessed:      s.Options.SkipProcessed,
		},
	}
	for _, img := range slice {
		req.Images = append(req.Images, remote.BatchImage{
			ID:         img.AttachmentID,
			ImageURL:   img.ImageURL,
			Context:    img.Context,
			Title:      img.Title,
			CurrentAlt: img.CurrentAlt,
		})
	}

	resp, callErr := p.api.GenerateAltTextBatch(ctx, req)
	switch {
	case callErr == nil:
		return p.applyResults(ctx, s, batch, slice, resp)
	case remote.IsInsufficientCredits(callErr):
		return p.pauseForCredits(ctx, s, batch, callErr)
	default:
		return p.failBatch(ctx, s, batch, slice, callErr)
	}
}

func (p *Processor) lastError(err error, batch int) *LastError {
	ae := apperr.From(err)
	return &LastError{Code: string(ae.Code), Message: ae.Message, Batch: batch, At: p.now()}
}

func (p *Processor) pauseForCredits(ctx context.Context, s *Session, batch int, callErr error) (*Progress, error) {
	le := p.lastError(callErr, batch)
	out, err := p.store.Update(ctx, s.ID, func(cur *Session) (time.Duration, error) {
		if cur.Status == StatusRunning {
			cur.Status = StatusPausedCredits
		}
		cur.LastError = le
		return p.ttlFor(cur), nil
	})
	if err != nil {
		return nil, sessionErr(err)
	}
	p.notifier.LowCredits(ctx, s.UserID)
	p.logger.Warn("bulk session paused for credits", "session_id", s.ID, "batch", batch)

	pr := p.progress(out)
	pr.Status = StatusInsufficientCredits
	pr.CanResume = true
	pr.Message = le.Message
	return pr, nil
}

func (p *Processor) failBatch(ctx context.Context, s *Session, batch int, slice []Image, callErr error) (*Progress, error) {
	le := p.lastError(callErr, batch)
	out, err := p.store.Update(ctx, s.ID, func(cur *Session) (time.Duration, error) {
		if cur.CurrentBatch != batch {
			return 0, ErrConflict
		}
		cur.Failed += len(slice) - cur.PendingFailed
		cur.PendingFailed = len(slice)
		cur.ConsecutiveFailures++
		cur.LastError = le
		return p.ttlFor(cur), nil
	})
	if err != nil {
		return nil, sessionErr(err)
	}
	p.logger.Error("bulk batch failed", "session_id", s.ID, "batch", batch, "images", len(slice), "err", callErr)

	pr := p.progress(out)
	pr.Message = le.Message
	return pr, nil
}

func (p *Processor) applyResults(ctx context.Context, s *Session, batch int, slice []Image, resp *remote.AltTextBatchResponse) (*Progress, error) {
	byID := make(map[int64]remote.BatchResult, len(resp.Results))
	for _, r := range resp.Results {
		byID[r.ID] = r
	}

	sum := BatchSummary{Batch: batch, CreditsUsed: resp.CreditsUsed, At: p.now()}
	results := make([]ImageResult, 0, len(slice))
	for _, img := range slice {
		ir := ImageResult{AttachmentID: img.AttachmentID}
		r, found := byID[img.AttachmentID]
		switch {
		case !found:
			ir.Error = "No result returned for this image."
		case strings.TrimSpace(r.AltText) == "":
			ir.Error = r.Error
			if ir.Error == "" {
				ir.Error = "Empty alt text returned."
			}
		default:
			stored, err := p.lib.UpdateAltText(ctx, img.AttachmentID, r.AltText)
			if err != nil {
				p.logger.Error("failed to store alt text", "session_id", s.ID, "attachment_id", img.AttachmentID, "err", err)
				ir.Error = "Failed to save alt text."
				break
			}
			ir.Success = true
			ir.Skipped = r.AlreadyProcessed
			ir.AltText = stored
		}

		switch {
		case ir.Skipped:
			sum.Skipped++
		case ir.Success:
			sum.Processed++
		default:
			sum.Failed++
		}
		results = append(results, ir)
	}

	// Alt text is already stored at this point. If the counter update below
	// loses the race, the rows keep their new text but the session does not
	// count them; the lease keeps that window to a concurrent cancel/resume.
	out, err := p.store.Update(ctx, s.ID, func(cur *Session) (time.Duration, error) {
		if cur.CurrentBatch != batch {
			return 0, ErrConflict
		}
		cur.Failed -= cur.PendingFailed
		cur.PendingFailed = 0
		cur.ConsecutiveFailures = 0
		cur.Processed += sum.Processed
		cur.Skipped += sum.Skipped
		cur.Failed += sum.Failed
		cur.CurrentBatch++
		cur.CompletedBatches = append(cur.CompletedBatches, sum)
		if cur.Status == StatusRunning && cur.Offset() >= len(cur.Images) {
			cur.Status = StatusCompleted
		}
		return p.ttlFor(cur), nil
	})
	if err != nil {
		p.logger.Warn("batch results stored but session not advanced", "session_id", s.ID, "batch", batch,
			"stored", sum.Processed+sum.Skipped, "err", err)
		return nil, sessionErr(err)
	}

	p.logger.Info("bulk batch processed", "session_id", s.ID, "batch", batch,
		"processed", sum.Processed, "skipped", sum.Skipped, "failed", sum.Failed, "status", out.Status)

	pr := p.progress(out)
	pr.BatchResults = results
	return pr, nil
}

// Cancel stops a session. Sessions that made progress stay resumable for a week.
func (p *Processor) Cancel(ctx context.Context, sessionID string) (*Progress, error) {
	out, err := p.store.Update(ctx, sessionID, func(cur *Session) (time.Duration, error) {
		if cur.IsTerminal() {
			return 0, apperr.Session(msgAlreadyClosed).WithDetails("status", string(cur.Status))
		}
		if cur.Processed > 0 {
			cur.Status = StatusCancelledResumable
		} else {
			cur.Status = StatusCancelled
		}
		return p.ttlFor(cur), nil
	})
	if err != nil {
		return nil, sessionErr(err)
	}
	p.logger.Info("bulk session cancelled", "session_id", sessionID, "status", out.Status, "processed", out.Processed)
	return p.progress(out), nil
}

// Resume continues a credit-paused or resumably-cancelled session from its current batch.
func (p *Processor) Resume(ctx context.Context, sessionID string) (*Progress, error) {
	out, err := p.store.Update(ctx, sessionID, func(cur *Session) (time.Duration, error) {
		if !cur.IsResumable() {
			return 0, apperr.Session(msgNotResumable).WithDetails("status", string(cur.Status))
		}
		cur.Status = StatusRunning
		cur.LastError = nil
		cur.ConsecutiveFailures = 0
		return p.ttlFor(cur), nil
	})
	if err != nil {
		return nil, sessionErr(err)
	}
	p.logger.Info("bulk session resumed", "session_id", sessionID, "batch", out.CurrentBatch)
	return p.progress(out), nil
}

func (p *Processor) Status(ctx context.Context, sessionID string) (*Progress, error) {
	s, err := p.store.Get(ctx, sessionID)
	if err != nil {
		return nil, sessionErr(err)
	}
	return p.progress(s), nil
}

// Owner returns the user that started the session.
func (p *Processor) Owner(ctx context.Context, sessionID string) (uint64, error) {
	s, err := p.store.Get(ctx, sessionID)
	if err != nil {
		return 0, sessionErr(err)
	}
	return s.UserID, nil
}
