package artisan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/history"
	"github.com/suPer8Hu/w3a11y-artisan/internal/media"
	"github.com/suPer8Hu/w3a11y-artisan/internal/remote"
	"github.com/suPer8Hu/w3a11y-artisan/internal/settings"
)

type API interface {
	Generate(ctx context.Context, req remote.GenerateRequest) (*remote.ImageResponse, error)
	Edit(ctx context.Context, req remote.EditRequest) (*remote.ImageResponse, error)
	Inspire(ctx context.Context, req remote.InspireRequest) (*remote.InspireResponse, error)
	Convert(ctx context.Context, req remote.ConvertRequest) (*remote.ImageResponse, error)
	Credits(ctx context.Context) (*remote.CreditsResponse, error)
}

type Library interface {
	Create(ctx context.Context, a *media.Attachment) error
	Get(ctx context.Context, id int64) (*media.Attachment, error)
	Save(ctx context.Context, a *media.Attachment) error
}

type HistoryRepo interface {
	Record(ctx context.Context, h *history.PromptHistory) error
	List(ctx context.Context, userID uint64, q history.Query) ([]history.PromptHistory, error)
	GetInspiration(ctx context.Context, userID uint64, imageHash string) (datatypes.JSON, bool, error)
	PutInspiration(ctx context.Context, userID uint64, imageHash string, suggestions datatypes.JSON) error
}

type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

type Notifier interface {
	LowCredits(ctx context.Context, userID uint64)
}

type Options struct {
	UploadDir     string
	UploadBaseURL string
}

type Service struct {
	api      API
	lib      Library
	history  HistoryRepo
	settings SettingsSource
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(api API, lib Library, hist HistoryRepo, st SettingsSource, notifier Notifier, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	opts.UploadBaseURL = strings.TrimRight(opts.UploadBaseURL, "/")
	return &Service{
		api:      api,
		lib:      lib,
		history:  hist,
		settings: st,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) remoteErr(ctx context.Context, userID uint64, err error) error {
	if remote.IsInsufficientCredits(err) {
		s.notifier.LowCredits(ctx, userID)
	}
	return err
}

// record writes a history row. Failures are logged, not returned: the image was already produced.
func (s *Service) record(ctx context.Context, h *history.PromptHistory) {
	if err := s.history.Record(ctx, h); err != nil {
		s.logger.Error("failed to record prompt history", "user_id", h.UserID, "op", h.OperationType, "err", err)
	}
}

func jsonData(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

type GenerateInput struct {
	Prompt          string
	Style           string
	AspectRatio     string
	Quality         string
	Width           int
	Height          int
	ReferenceImages []string
}

func (s *Service) Generate(ctx context.Context, userID uint64, in GenerateInput) (*remote.ImageResponse, error) {
	prompt, err := SanitizePrompt(in.Prompt)
	if err != nil {
		return nil, err
	}
	width, err := SanitizeDimension(in.Width)
	if err != nil {
		return nil, err
	}
	height, err := SanitizeDimension(in.Height)
	if err != nil {
		return nil, err
	}
	refs, err := SanitizeReferences(in.ReferenceImages)
	if err != nil {
		return nil, err
	}
	st, err := s.settings.Load(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load settings.")
	}

	req := remote.GenerateRequest{
		Prompt:          prompt,
		Style:           pick(in.Style, settings.Styles, st.DefaultStyle),
		AspectRatio:     pick(in.AspectRatio, settings.AspectRatios, st.DefaultAspectRatio),
		Quality:         pick(in.Quality, settings.Qualities, st.DefaultQuality),
		Width:           width,
		Height:          height,
		ReferenceImages: refs,
	}
	resp, err := s.api.Generate(ctx, req)
	if err != nil {
		return nil, s.remoteErr(ctx, userID, err)
	}

	s.record(ctx, &history.PromptHistory{
		UserID:        userID,
		OperationType: history.OpGenerate,
		Prompt:        prompt,
		ImageHash:     history.ImageHash(resp.Image),
		OperationData: jsonData(map[string]any{
			"style":        req.Style,
			"aspect_ratio": req.AspectRatio,
			"quality":      req.Quality,
			"width":        req.Width,
			"height":       req.Height,
			"references":   len(refs),
		}),
	})
	return resp, nil
}

type EditInput struct {
	Prompt          string
	Image           string
	EditType        string
	Style           string
	AttachmentID    int64
	ReferenceImages []string
}

func (s *Service) Edit(ctx context.Context, userID uint64, in EditInput) (*remote.ImageResponse, error) {
	prompt, err := SanitizePrompt(in.Prompt)
	if err != nil {
		return nil, err
	}
	img, _, err := SanitizeImage(in.Image)
	if err != nil {
		return nil, err
	}
	refs, err := SanitizeReferences(in.ReferenceImages)
	if err != nil {
		return nil, err
	}

	req := remote.EditRequest{
		Prompt:          prompt,
		Image:           img,
		EditType:        pick(in.EditType, EditTypes, "general"),
		Style:           pick(in.Style, settings.Styles, ""),
		ReferenceImages: refs,
	}
	resp, err := s.api.Edit(ctx, req)
	if err != nil {
		return nil, s.remoteErr(ctx, userID, err)
	}

	s.record(ctx, &history.PromptHistory{
		UserID:        userID,
		OperationType: history.OpEdit,
		Prompt:        prompt,
		AttachmentID:  in.AttachmentID,
		ImageHash:     history.ImageHash(img),
		OperationData: jsonData(map[string]any{
			"edit_type":   req.EditType,
			"style":       req.Style,
			"result_hash": history.ImageHash(resp.Image),
		}),
	})
	return resp, nil
}

type InspireInput struct {
	Image        string
	Context      string
	AttachmentID int64
}

type InspireResult struct {
	Suggestions      json.RawMessage `json:"suggestions"`
	Cached           bool            `json:"cached"`
	CreditsUsed      int             `json:"credits_used"`
	CreditsRemaining int             `json:"credits_remaining,omitempty"`
}

// Inspire returns prompt suggestions for an image, served from cache when the same image was seen before.
func (s *Service) Inspire(ctx context.Context, userID uint64, in InspireInput) (*InspireResult, error) {
	img, _, err := SanitizeImage(in.Image)
	if err != nil {
		return nil, err
	}
	hash := history.ImageHash(img)

	cached, ok, err := s.history.GetInspiration(ctx, userID, hash)
	if err != nil {
		s.logger.Warn("inspiration cache lookup failed", "user_id", userID, "err", err)
	} else if ok {
		return &InspireResult{Suggestions: json.RawMessage(cached), Cached: true}, nil
	}

	resp, err := s.api.Inspire(ctx, remote.InspireRequest{Image: img, Context: media.SanitizeText(in.Context)})
	if err != nil {
		return nil, s.remoteErr(ctx, userID, err)
	}
	if len(resp.Suggestions) > 0 {
		if err := s.history.PutInspiration(ctx, userID, hash, datatypes.JSON(resp.Suggestions)); err != nil {
			s.logger.Warn("failed to cache inspiration", "user_id", userID, "err", err)
		}
	}
	s.record(ctx, &history.PromptHistory{
		UserID:        userID,
		OperationType: history.OpInspire,
		Prompt:        media.SanitizeText(in.Context),
		AttachmentID:  in.AttachmentID,
		ImageHash:     hash,
	})
	return &InspireResult{
		Suggestions:      resp.Suggestions,
		CreditsUsed:      resp.CreditsUsed,
		CreditsRemaining: resp.CreditsRemaining,
	}, nil
}

func (s *Service) Credits(ctx context.Context, userID uint64) (*remote.CreditsResponse, error) {
	resp, err := s.api.Credits(ctx)
	if err != nil {
		return nil, s.remoteErr(ctx, userID, err)
	}
	return resp, nil
}

type ConvertInput struct {
	Image   string
	Format  string
	Quality int
}

func (s *Service) Convert(ctx context.Context, userID uint64, in ConvertInput) (*remote.ImageResponse, error) {
	img, _, err := SanitizeImage(in.Image)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(in.Format))
	if format == "jpg" {
		format = "jpeg"
	}
	if pick(format, ConvertFormats, "") == "" {
		return nil, apperr.Validation("Unsupported format. Use png, jpeg or webp.")
	}
	quality := in.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	resp, err := s.api.Convert(ctx, remote.ConvertRequest{Image: img, Format: format, Quality: quality})
	if err != nil {
		return nil, s.remoteErr(ctx, userID, err)
	}
	return resp, nil
}

type SaveInput struct {
	Image               string
	Filename            string
	Title               string
	AltText             string
	ParentID            int64
	ReplaceAttachmentID int64
}

type SavedImage struct {
	AttachmentID int64  `json:"attachment_id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	AltText      string `json:"alt_text"`
	MimeType     string `json:"mime_type"`
	Replaced     bool   `json:"replaced"`
}

var extByMime = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// SaveImage writes the image into the upload directory and creates or replaces an attachment.
func (s *Service) SaveImage(ctx context.Context, in SaveInput) (*SavedImage, error) {
	_, raw, err := SanitizeImage(in.Image)
	if err != nil {
		return nil, err
	}
	mime := http.DetectContentType(raw)
	ext, ok := extByMime[mime]
	if !ok {
		return nil, apperr.Validation("Unsupported image type.")
	}

	var existing *media.Attachment
	if in.ReplaceAttachmentID > 0 {
		existing, err = s.lib.Get(ctx, in.ReplaceAttachmentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Attachment to replace was not found.")
		}
		if err != nil {
			return nil, apperr.Internal(err, "Failed to load attachment.")
		}
	}

	base := SanitizeFilename(in.Filename)
	sub := s.now().Format("2006/01")
	name := fmt.Sprintf("%s-%s.%s", base, uuid.NewString()[:8], ext)
	dir := filepath.Join(s.opts.UploadDir, filepath.FromSlash(sub))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Internal(err, "Failed to prepare the upload directory.")
	}
	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, raw, 0o644); err != nil {
		return nil, apperr.Internal(err, "Failed to write the image file.")
	}
	url := s.opts.UploadBaseURL + "/" + path.Join(sub, name)

	title := media.SanitizeText(in.Title)
	alt := media.SanitizeText(in.AltText)

	if existing != nil {
		old := existing.FilePath
		existing.URL = url
		existing.FilePath = full
		existing.MimeType = mime
		if title != "" {
			existing.Title = title
		}
		if alt != "" {
			existing.AltText = &alt
		}
		if err := s.lib.Save(ctx, existing); err != nil {
			_ = os.Remove(full)
			return nil, apperr.Internal(err, "Failed to update the attachment.")
		}
		if old != "" && old != full {
			if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("failed to remove replaced file", "path", old, "err", err)
			}
		}
		return &SavedImage{
			AttachmentID: existing.ID,
			URL:          url,
			Title:        existing.Title,
			AltText:      existing.Alt(),
			MimeType:     mime,
			Replaced:     true,
		}, nil
	}

	if title == "" {
		title = base
	}
	att := &media.Attachment{
		ParentID: in.ParentID,
		Title:    title,
		URL:      url,
		FilePath: full,
		MimeType: mime,
	}
	if alt != "" {
		att.AltText = &alt
	}
	if err := s.lib.Create(ctx, att); err != nil {
		_ = os.Remove(full)
		return nil, apperr.Internal(err, "Failed to create the attachment.")
	}
	s.logger.Info("image saved", "attachment_id", att.ID, "bytes", len(raw), "mime", mime)
	return &SavedImage{
		AttachmentID: att.ID,
		URL:          url,
		Title:        title,
		AltText:      alt,
		MimeType:     mime,
	}, nil
}

type AttachmentData struct {
	ID          int64  `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	AltText     string `json:"alt_text"`
	MimeType    string `json:"mime_type"`
	ImageBase64 string `json:"image_base64"`
}

// AttachmentData loads an image attachment for the editor, file contents included as a data URI.
func (s *Service) AttachmentData(ctx context.Context, id int64) (*AttachmentData, error) {
	if id <= 0 {
		return nil, apperr.Validation("Invalid attachment ID.")
	}
	att, err := s.lib.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Attachment not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load attachment.")
	}
	if !strings.HasPrefix(att.MimeType, "image/") {
		return nil, apperr.Validation("Attachment is not an image.")
	}
	if att.FilePath == "" {
		return nil, apperr.NotFound("Image file not found.")
	}
	raw, err := os.ReadFile(att.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("Image file not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to read the image file.")
	}
	return &AttachmentData{
		ID:          att.ID,
		URL:         att.URL,
		Title:       att.Title,
		AltText:     att.Alt(),
		MimeType:    att.MimeType,
		ImageBase64: "data:" + att.MimeType + ";base64," + base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (s *Service) PromptHistory(ctx context.Context, userID uint64, q history.Query) ([]history.PromptHistory, error) {
	if q.ImageHash != "" {
		q.ImageHash = strings.ToLower(strings.TrimSpace(q.ImageHash))
	}
	rows, err := s.history.List(ctx, userID, q)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load prompt history.")
	}
	return rows, nil
}
