package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/bulk"
	"github.com/suPer8Hu/w3a11y-artisan/internal/media"
)

type bulkReq struct {
	SubAction          string `json:"sub_action" form:"sub_action" binding:"required,oneof=start process_batch cancel resume status"`
	SessionID          string `json:"session_id" form:"session_id" binding:"max=64"`
	OnlyAttached       *bool  `json:"only_attached" form:"only_attached"`
	OverwriteExisting  *bool  `json:"overwrite_existing" form:"overwrite_existing"`
	SkipProcessed      *bool  `json:"skip_processed" form:"skip_processed"`
	Language           string `json:"language" form:"language" binding:"omitempty,max=8"`
	MaxLength          int    `json:"max_length" form:"max_length" binding:"omitempty,min=50,max=500"`
	CustomInstructions string `json:"custom_instructions" form:"custom_instructions" binding:"max=1000"`
	Drive              string `json:"drive" form:"drive" binding:"omitempty,oneof=browser server"`
}

func orDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// BulkAltText multiplexes the bulk session lifecycle on sub_action.
func (h *Handler) BulkAltText(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req bulkReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	ctx := c.Request.Context()

	if req.SubAction == "start" {
		out, err := h.startBulk(ctx, uid, req)
		h.respond(c, out, err)
		return
	}

	// reject before Resume flips the session to running with nothing to drive it
	if req.SubAction == "resume" && req.Drive == "server" && h.Queue == nil {
		h.respond(c, nil, apperr.Validation("Background processing is not available."))
		return
	}
	if req.SessionID == "" {
		h.respond(c, nil, apperr.Session("Session ID is required."))
		return
	}
	if err := h.ownSession(ctx, uid, req.SessionID); err != nil {
		h.respond(c, nil, err)
		return
	}

	var out *bulk.Progress
	switch req.SubAction {
	case "process_batch":
		out, err = h.Svc.Bulk.ProcessNextBatch(ctx, req.SessionID)
	case "cancel":
		out, err = h.Svc.Bulk.Cancel(ctx, req.SessionID)
	case "resume":
		out, err = h.Svc.Bulk.Resume(ctx, req.SessionID)
		if err == nil && req.Drive == "server" {
			err = h.enqueue(ctx, req.SessionID, uid)
		}
	default:
		out, err = h.Svc.Bulk.Status(ctx, req.SessionID)
	}
	h.respond(c, out, err)
}

func (h *Handler) startBulk(ctx context.Context, uid uint64, req bulkReq) (*bulk.StartResult, error) {
	if req.Drive == "server" && h.Queue == nil {
		return nil, apperr.Validation("Background processing is not available.")
	}
	st, err := h.Svc.Settings.Load(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load settings.")
	}

	opts := bulk.Options{
		OnlyAttached:       orDefault(req.OnlyAttached, st.AltTextOnlyAttached),
		OverwriteExisting:  orDefault(req.OverwriteExisting, st.AltTextOverwrite),
		SkipProcessed:      orDefault(req.SkipProcessed, st.AltTextSkipProcessed),
		Language:           req.Language,
		MaxLength:          req.MaxLength,
		CustomInstructions: media.SanitizeText(req.CustomInstructions),
	}
	if opts.Language == "" {
		opts.Language = st.AltTextLanguage
	}
	if opts.MaxLength == 0 {
		opts.MaxLength = st.AltTextMaxLength
	}
	if opts.CustomInstructions == "" {
		opts.CustomInstructions = st.AltTextCustomInstructions
	}

	res, err := h.Svc.Bulk.Start(ctx, uid, opts)
	if err != nil {
		return nil, err
	}
	if req.Drive == "server" {
		if err := h.enqueue(ctx, res.SessionID, uid); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (h *Handler) enqueue(ctx context.Context, sessionID string, uid uint64) error {
	if h.Queue == nil {
		return apperr.Validation("Background processing is not available.")
	}
	if err := h.Queue.PublishSession(ctx, sessionID, uid); err != nil {
		return apperr.Internal(err, "Failed to queue the bulk processing session.")
	}
	return nil
}

// ownSession hides other users' sessions behind the same error as a missing one.
func (h *Handler) ownSession(ctx context.Context, uid uint64, sessionID string) error {
	owner, err := h.Svc.Bulk.Owner(ctx, sessionID)
	if err != nil {
		return err
	}
	if owner != uid {
		return apperr.Session("Invalid or expired bulk processing session.")
	}
	return nil
}
