package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/w3a11y-artisan/internal/alttext"
)

type altTextReq struct {
	AttachmentID       int64  `json:"attachment_id" form:"attachment_id" binding:"required,min=1"`
	Language           string `json:"language" form:"language" binding:"omitempty,max=8"`
	MaxLength          int    `json:"max_length" form:"max_length" binding:"omitempty,min=50,max=500"`
	CustomInstructions string `json:"custom_instructions" form:"custom_instructions" binding:"max=1000"`
	Save               bool   `json:"save" form:"save"`
}

func (h *Handler) GenerateAltText(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req altTextReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	out, err := h.Svc.AltText.Generate(c.Request.Context(), uid, alttext.Request{
		AttachmentID:       req.AttachmentID,
		Language:           req.Language,
		MaxLength:          req.MaxLength,
		CustomInstructions: req.CustomInstructions,
		Save:               req.Save,
	})
	h.respond(c, out, err)
}

func (h *Handler) BulkStats(c *gin.Context) {
	out, err := h.Svc.AltText.Stats(c.Request.Context())
	h.respond(c, out, err)
}
