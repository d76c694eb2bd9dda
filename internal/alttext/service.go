package alttext

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/media"
	"github.com/suPer8Hu/w3a11y-artisan/internal/remote"
	"github.com/suPer8Hu/w3a11y-artisan/internal/settings"
)

type API interface {
	GenerateAltText(ctx context.Context, req remote.AltTextRequest) (*remote.AltTextResponse, error)
}

type Library interface {
	Get(ctx context.Context, id int64) (*media.Attachment, error)
	UpdateAltText(ctx context.Context, id int64, alt string) (string, error)
	Stats(ctx context.Context) (media.Stats, error)
}

type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

type Notifier interface {
	LowCredits(ctx context.Context, userID uint64)
}

type Request struct {
	AttachmentID       int64
	Language           string
	MaxLength          int
	CustomInstructions string
	Save               bool
}

type Result struct {
	AttachmentID     int64  `json:"attachment_id"`
	AltText          string `json:"alt_text"`
	Saved            bool   `json:"saved"`
	CreditsUsed      int    `json:"credits_used"`
	CreditsRemaining int    `json:"credits_remaining"`
}

type Service struct {
	api      API
	lib      Library
	settings SettingsSource
	notifier Notifier
	logger   *slog.Logger
}

func NewService(api API, lib Library, st SettingsSource, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, lib: lib, settings: st, notifier: notifier, logger: logger}
}

func (s *Service) Generate(ctx context.Context, userID uint64, req Request) (*Result, error) {
	if req.AttachmentID <= 0 {
		return nil, apperr.Validation("Invalid attachment ID.")
	}
	att, err := s.lib.Get(ctx, req.AttachmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Attachment not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load attachment.")
	}
	if !strings.HasPrefix(att.MimeType, "image/") {
		return nil, apperr.Validation("Attachment is not an image.")
	}

	st, err := s.settings.Load(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load settings.")
	}
	lang := req.Language
	if !slices.Contains(settings.Languages, lang) {
		lang = st.AltTextLanguage
	}
	maxLen := req.MaxLength
	if maxLen < settings.MinAltLength || maxLen > settings.MaxAltLength {
		maxLen = st.AltTextMaxLength
	}
	instructions := media.SanitizeText(req.CustomInstructions)
	if instructions == "" {
		instructions = st.AltTextCustomInstructions
	}

	resp, err := s.api.GenerateAltText(ctx, remote.AltTextRequest{
		ImageURL:           att.URL,
		Context:            att.Context,
		Title:              att.Title,
		Language:           lang,
		MaxLength:          maxLen,
		CustomInstructions: instructions,
	})
	if err != nil {
		if remote.IsInsufficientCredits(err) {
			s.notifier.LowCredits(ctx, userID)
		}
		return nil, err
	}

	alt := media.SanitizeText(resp.AltText)
	if alt == "" {
		return nil, apperr.Server(nil, "The AI service returned an empty alt text.")
	}

	out := &Result{
		AttachmentID:     att.ID,
		AltText:          alt,
		CreditsUsed:      resp.CreditsUsed,
		CreditsRemaining: resp.CreditsRemaining,
	}
	if req.Save {
		stored, err := s.lib.UpdateAltText(ctx, att.ID, alt)
		if err != nil {
			return nil, apperr.Internal(err, "Failed to save alt text.")
		}
		out.AltText = stored
		out.Saved = true
	}
	s.logger.Info("alt text generated", "attachment_id", att.ID, "user_id", userID, "saved", out.Saved)
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (media.Stats, error) {
	st, err := s.lib.Stats(ctx)
	if err != nil {
		return st, apperr.Internal(err, "Failed to load media statistics.")
	}
	return st, nil
}
