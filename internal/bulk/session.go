package bulk

import "time"

type Status string

const (
	StatusRunning            Status = "running"
	StatusPausedCredits      Status = "paused_credits"
	StatusCancelled          Status = "cancelled"
	StatusCancelledResumable Status = "cancelled_resumable"
	StatusCompleted          Status = "completed"
)

// Image is one entry of the work-list, captured at session start and never re-queried.
type Image struct {
	AttachmentID int64  `json:"attachment_id"`
	ImageURL     string `json:"image_url"`
	Context      string `json:"context,omitempty"`
	Title        string `json:"title,omitempty"`
	CurrentAlt   string `json:"current_alt,omitempty"`
}

// Options are the user's filter and generation choices at start time.
type Options struct {
	OnlyAttached       bool   `json:"only_attached"`
	OverwriteExisting  bool   `json:"overwrite_existing"`
	SkipProcessed      bool   `json:"skip_processed"`
	Language           string `json:"language"`
	MaxLength          int    `json:"max_length"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
}

type ServerConfig struct {
	BatchSize int `json:"batch_size"`
}

type BatchSummary struct {
	Batch       int       `json:"batch"`
	Processed   int       `json:"processed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	CreditsUsed int       `json:"credits_used"`
	At          time.Time `json:"at"`
}

type LastError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Batch   int       `json:"batch"`
	At      time.Time `json:"at"`
}

type Session struct {
	ID           string       `json:"id"`
	UserID       uint64       `json:"user_id"`
	Images       []Image      `json:"images"`
	Options      Options      `json:"processing_options"`
	ServerConfig ServerConfig `json:"server_config"`

	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	CurrentBatch int `json:"current_batch"`
	// PendingFailed is how many of Failed belong to the current, not yet advanced batch.
	// A retried batch is recounted, so these are subtracted first.
	PendingFailed       int `json:"pending_failed"`
	ConsecutiveFailures int `json:"consecutive_failures"`

	Status           Status         `json:"status"`
	CompletedBatches []BatchSummary `json:"completed_batches"`
	LastError        *LastError     `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Total() int { return len(s.Images) }

func (s *Session) TotalBatches() int {
	if s.ServerConfig.BatchSize <= 0 {
		return 0
	}
	return (len(s.Images) + s.ServerConfig.BatchSize - 1) / s.ServerConfig.BatchSize
}

// Offset is the index of the next unprocessed image.
func (s *Session) Offset() int {
	return s.CurrentBatch * s.ServerConfig.BatchSize
}

func (s *Session) NextSlice() []Image {
	off := s.Offset()
	if off >= len(s.Images) {
		return nil
	}
	end := min(off+s.ServerConfig.BatchSize, len(s.Images))
	return s.Images[off:end]
}

func (s *Session) Done() int { return s.Processed + s.Failed + s.Skipped }

func (s *Session) IsResumable() bool {
	return s.Status == StatusPausedCredits || s.Status == StatusCancelledResumable
}

func (s *Session) IsTerminal() bool {
	return s.Status == StatusCancelled || s.Status == StatusCompleted
}
