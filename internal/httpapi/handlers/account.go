package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/notify"
	"github.com/suPer8Hu/w3a11y-artisan/internal/settings"
)

func (h *Handler) CreditsInfo(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	ctx := c.Request.Context()
	key, err := h.Svc.Settings.APIKey(ctx)
	if err != nil {
		h.respond(c, nil, apperr.Internal(err, "Failed to load settings."))
		return
	}
	if key == "" {
		h.respond(c, gin.H{"api_key_configured": false}, nil)
		return
	}
	credits, err := h.Svc.Artisan.Credits(ctx, uid)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	h.respond(c, gin.H{
		"api_key_configured": true,
		"available_credits":  credits.AvailableCredits,
		"used_credits":       credits.UsedCredits,
		"plan":               credits.Plan,
	}, nil)
}

type validateKeyReq struct {
	APIKey string `json:"api_key" form:"api_key" binding:"required,max=255"`
	Save   bool   `json:"save" form:"save"`
}

// ValidateAPIKey checks a key against the remote credits endpoint before it is stored.
func (h *Handler) ValidateAPIKey(c *gin.Context) {
	var req validateKeyReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	ctx := c.Request.Context()
	key := strings.TrimSpace(req.APIKey)

	credits, err := h.Svc.Remote.WithAPIKey(key).Credits(ctx)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	if req.Save {
		if err := h.Svc.Settings.SetAPIKey(ctx, key); err != nil {
			h.respond(c, nil, apperr.Internal(err, "Failed to save the API key."))
			return
		}
	}
	h.respond(c, gin.H{
		"valid":             true,
		"saved":             req.Save,
		"available_credits": credits.AvailableCredits,
		"plan":              credits.Plan,
	}, nil)
}

func (h *Handler) GetSettings(c *gin.Context) {
	st, err := h.Svc.Settings.Load(c.Request.Context())
	if err != nil {
		h.respond(c, nil, apperr.Internal(err, "Failed to load settings."))
		return
	}
	h.respond(c, st.Public(), nil)
}

type saveSettingsReq struct {
	DefaultStyle              string `json:"default_style" form:"default_style"`
	DefaultAspectRatio        string `json:"default_aspect_ratio" form:"default_aspect_ratio"`
	DefaultQuality            string `json:"default_quality" form:"default_quality"`
	AltTextLanguage           string `json:"alttext_language" form:"alttext_language"`
	AltTextMaxLength          int    `json:"alttext_max_length" form:"alttext_max_length"`
	AltTextOverwrite          bool   `json:"alttext_overwrite" form:"alttext_overwrite"`
	AltTextOnlyAttached       bool   `json:"alttext_only_attached" form:"alttext_only_attached"`
	AltTextSkipProcessed      bool   `json:"alttext_skip_processed" form:"alttext_skip_processed"`
	AltTextCustomInstructions string `json:"alttext_custom_instructions" form:"alttext_custom_instructions" binding:"max=1000"`
	AutoAltOnUpload           bool   `json:"auto_alt_on_upload" form:"auto_alt_on_upload"`
	LoggingEnabled            bool   `json:"logging_enabled" form:"logging_enabled"`
}

// SaveSettings stores everything but the API key, which only ValidateAPIKey writes.
func (h *Handler) SaveSettings(c *gin.Context) {
	var req saveSettingsReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	ctx := c.Request.Context()
	cur, err := h.Svc.Settings.Load(ctx)
	if err != nil {
		h.respond(c, nil, apperr.Internal(err, "Failed to load settings."))
		return
	}

	next := settings.Settings{
		APIKey:                    cur.APIKey,
		DefaultStyle:              req.DefaultStyle,
		DefaultAspectRatio:        req.DefaultAspectRatio,
		DefaultQuality:            req.DefaultQuality,
		AltTextLanguage:           req.AltTextLanguage,
		AltTextMaxLength:          req.AltTextMaxLength,
		AltTextOverwrite:          req.AltTextOverwrite,
		AltTextOnlyAttached:       req.AltTextOnlyAttached,
		AltTextSkipProcessed:      req.AltTextSkipProcessed,
		AltTextCustomInstructions: req.AltTextCustomInstructions,
		AutoAltOnUpload:           req.AutoAltOnUpload,
		LoggingEnabled:            req.LoggingEnabled,
	}.Normalize()
	if err := h.Svc.Settings.Save(ctx, next); err != nil {
		h.respond(c, nil, apperr.Internal(err, "Failed to save settings."))
		return
	}
	h.respond(c, next.Public(), nil)
}

type addNoticeReq struct {
	Type       string `json:"type" form:"type" binding:"omitempty,oneof=error warning info success"`
	Message    string `json:"message" form:"message" binding:"required,max=1000"`
	Persistent bool   `json:"persistent" form:"persistent"`
	Context    string `json:"context" form:"context" binding:"max=100"`
}

func (h *Handler) AddNotification(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req addNoticeReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	n, err := h.Svc.Notices.Add(c.Request.Context(), uid, notify.Notice{
		Type:       req.Type,
		Message:    req.Message,
		Persistent: req.Persistent,
		Context:    req.Context,
	})
	if err != nil {
		h.respond(c, nil, apperr.Validation("Invalid notification."))
		return
	}
	h.respond(c, n, nil)
}

type dismissReq struct {
	NoticeID string `json:"notice_id" form:"notice_id" binding:"required,max=64"`
}

func (h *Handler) DismissNotice(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req dismissReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	if err := h.Svc.Notices.Dismiss(c.Request.Context(), uid, req.NoticeID); err != nil {
		h.respond(c, nil, apperr.Internal(err, "Failed to dismiss notice."))
		return
	}
	h.respond(c, gin.H{"dismissed": req.NoticeID}, nil)
}

func (h *Handler) GetNotifications(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	list, err := h.Svc.Notices.List(c.Request.Context(), uid)
	if err != nil {
		h.respond(c, nil, apperr.Internal(err, "Failed to load notifications."))
		return
	}
	h.respond(c, gin.H{"notifications": list}, nil)
}
