package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/suPer8Hu/w3a11y-artisan/internal/app"
	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/common"
	"github.com/suPer8Hu/w3a11y-artisan/internal/httpapi/middleware"
)

// SessionPublisher hands a bulk session to the background worker.
type SessionPublisher interface {
	PublishSession(ctx context.Context, sessionID string, userID uint64) error
}

type action struct {
	capability string
	handle     gin.HandlerFunc
}

type Handler struct {
	Svc    *app.Services
	Queue  SessionPublisher
	Logger *slog.Logger

	actions map[string]action
}

// NewHandler builds the action table. queue may be nil when no worker is deployed.
func NewHandler(svc *app.Services, queue SessionPublisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{Svc: svc, Queue: queue, Logger: logger}

	upload := middleware.CapUploadFiles
	manage := middleware.CapManageOptions
	h.actions = map[string]action{
		"w3a11y_artisan_generate":     {upload, h.Generate},
		"w3a11y_artisan_edit":         {upload, h.Edit},
		"w3a11y_artisan_inspire":      {upload, h.Inspire},
		"w3a11y_artisan_credits":      {upload, h.Credits},
		"w3a11y_artisan_convert":      {upload, h.Convert},
		"w3a11y_artisan_save_image":   {upload, h.SaveImage},
		"w3a11y_get_attachment_data":  {upload, h.AttachmentData},
		"w3a11y_get_prompt_history":   {upload, h.PromptHistory},
		"w3a11y_generate_alttext":     {upload, h.GenerateAltText},
		"w3a11y_bulk_alttext":         {upload, h.BulkAltText},
		"w3a11y_get_bulk_stats":       {upload, h.BulkStats},
		"w3a11y_get_credits_info":     {upload, h.CreditsInfo},
		"w3a11y_validate_api_key":     {manage, h.ValidateAPIKey},
		"w3a11y_get_settings":         {manage, h.GetSettings},
		"w3a11y_save_settings":        {manage, h.SaveSettings},
		"w3a11y_add_notification":     {upload, h.AddNotification},
		"w3a11y_dismiss_notice":       {upload, h.DismissNotice},
		"w3a11y_get_notifications":    {upload, h.GetNotifications},
		"w3a11y_artisan_history_push": {upload, h.HistoryPush},
		"w3a11y_artisan_history_undo": {upload, h.HistoryUndo},
		"w3a11y_artisan_history_redo": {upload, h.HistoryRedo},
	}
	return h
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

type actionField struct {
	Action string `json:"action" form:"action"`
}

func isJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), binding.MIMEJSON)
}

// actionName reads the action from the query string, form body, or JSON body.
func actionName(c *gin.Context) string {
	if a := c.Query("action"); a != "" {
		return a
	}
	var f actionField
	if isJSON(c) {
		_ = c.ShouldBindBodyWith(&f, binding.JSON)
	} else {
		_ = c.ShouldBind(&f)
	}
	return strings.TrimSpace(f.Action)
}

// Ajax is the admin-ajax.php dispatcher.
func (h *Handler) Ajax(c *gin.Context) {
	name := actionName(c)
	c.Set(middleware.ActionKey, name)

	a, found := h.actions[name]
	if !found {
		common.Fail(c, apperr.Validation("Invalid action"))
		return
	}
	if !middleware.HasCapability(c, a.capability) {
		common.Fail(c, apperr.Auth("You do not have permission to perform this action.", http.StatusForbidden))
		return
	}
	a.handle(c)
}

// bind decodes the request body into req and runs its binding tags.
func bind(c *gin.Context, req any) error {
	var err error
	if isJSON(c) {
		err = c.ShouldBindBodyWith(req, binding.JSON)
	} else {
		err = c.ShouldBind(req)
	}
	if err == nil {
		return nil
	}
	if msgs := FormatValidationErrors(err); len(msgs) > 0 {
		return apperr.Validation(strings.Join(msgs, ", "))
	}
	return apperr.Validation("Invalid request payload.")
}

func userID(c *gin.Context) (uint64, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return 0, apperr.Auth("Authentication required.", http.StatusUnauthorized)
	}
	return uid, nil
}

func (h *Handler) respond(c *gin.Context, data any, err error) {
	if err != nil {
		ae := apperr.From(err)
		if ae.StatusCode >= 500 {
			h.Logger.Error("action failed", "action", c.GetString(middleware.ActionKey),
				"request_id", c.GetString(middleware.RequestIDKey), "err", ae)
		}
		common.Fail(c, ae)
		return
	}
	common.OK(c, data)
}
