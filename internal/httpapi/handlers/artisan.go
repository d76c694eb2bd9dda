package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/w3a11y-artisan/internal/artisan"
	"github.com/suPer8Hu/w3a11y-artisan/internal/history"
)

type generateReq struct {
	Prompt          string   `json:"prompt" form:"prompt" binding:"required,max=10000"`
	Style           string   `json:"style" form:"style" binding:"omitempty,oneof=photorealistic digital-art illustration watercolor oil-painting sketch anime 3d-render minimalist vintage"`
	AspectRatio     string   `json:"aspect_ratio" form:"aspect_ratio" binding:"omitempty,oneof=1:1 16:9 9:16 4:3 3:4 3:2 2:3"`
	Quality         string   `json:"quality" form:"quality" binding:"omitempty,oneof=standard hd"`
	Width           int      `json:"width" form:"width" binding:"omitempty,min=256,max=2048"`
	Height          int      `json:"height" form:"height" binding:"omitempty,min=256,max=2048"`
	ReferenceImages []string `json:"reference_images" form:"reference_images" binding:"max=3"`
}

func (h *Handler) Generate(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req generateReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	out, err := h.Svc.Artisan.Generate(c.Request.Context(), uid, artisan.GenerateInput{
		Prompt:          req.Prompt,
		Style:           req.Style,
		AspectRatio:     req.AspectRatio,
		Quality:         req.Quality,
		Width:           req.Width,
		Height:          req.Height,
		ReferenceImages: req.ReferenceImages,
	})
	h.respond(c, out, err)
}

type editReq struct {
	Prompt          string   `json:"prompt" form:"prompt" binding:"required,max=10000"`
	ImageData       string   `json:"image_data" form:"image_data" binding:"required"`
	EditType        string   `json:"edit_type" form:"edit_type" binding:"omitempty,oneof=general background object-removal style-transfer enhance color"`
	Style           string   `json:"style" form:"style"`
	AttachmentID    int64    `json:"attachment_id" form:"attachment_id" binding:"min=0"`
	ReferenceImages []string `json:"reference_images" form:"reference_images" binding:"max=3"`
}

func (h *Handler) Edit(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req editReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	out, err := h.Svc.Artisan.Edit(c.Request.Context(), uid, artisan.EditInput{
		Prompt:          req.Prompt,
		Image:           req.ImageData,
		EditType:        req.EditType,
		Style:           req.Style,
		AttachmentID:    req.AttachmentID,
		ReferenceImages: req.ReferenceImages,
	})
	h.respond(c, out, err)
}

type inspireReq struct {
	ImageData    string `json:"image_data" form:"image_data" binding:"required"`
	Context      string `json:"context" form:"context" binding:"max=2000"`
	AttachmentID int64  `json:"attachment_id" form:"attachment_id" binding:"min=0"`
}

func (h *Handler) Inspire(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req inspireReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	out, err := h.Svc.Artisan.Inspire(c.Request.Context(), uid, artisan.InspireInput{
		Image:        req.ImageData,
		Context:      req.Context,
		AttachmentID: req.AttachmentID,
	})
	h.respond(c, out, err)
}

func (h *Handler) Credits(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	out, err := h.Svc.Artisan.Credits(c.Request.Context(), uid)
	h.respond(c, out, err)
}

type convertReq struct {
	ImageData string `json:"image_data" form:"image_data" binding:"required"`
	Format    string `json:"format" form:"format" binding:"required,oneof=png jpeg jpg webp"`
	Quality   int    `json:"quality" form:"quality" binding:"min=0,max=100"`
}

func (h *Handler) Convert(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req convertReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	out, err := h.Svc.Artisan.Convert(c.Request.Context(), uid, artisan.ConvertInput{
		Image:   req.ImageData,
		Format:  req.Format,
		Quality: req.Quality,
	})
	h.respond(c, out, err)
}

type saveImageReq struct {
	ImageData           string `json:"image_data" form:"image_data" binding:"required"`
	Filename            string `json:"filename" form:"filename" binding:"max=255"`
	Title               string `json:"title" form:"title" binding:"max=255"`
	AltText             string `json:"alt_text" form:"alt_text" binding:"max=1000"`
	PostID              int64  `json:"post_id" form:"post_id" binding:"min=0"`
	ReplaceAttachmentID int64  `json:"replace_attachment_id" form:"replace_attachment_id" binding:"min=0"`
}

func (h *Handler) SaveImage(c *gin.Context) {
	var req saveImageReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	out, err := h.Svc.Artisan.SaveImage(c.Request.Context(), artisan.SaveInput{
		Image:               req.ImageData,
		Filename:            req.Filename,
		Title:               req.Title,
		AltText:             req.AltText,
		ParentID:            req.PostID,
		ReplaceAttachmentID: req.ReplaceAttachmentID,
	})
	h.respond(c, out, err)
}

type attachmentReq struct {
	AttachmentID int64 `json:"attachment_id" form:"attachment_id" binding:"required,min=1"`
}

func (h *Handler) AttachmentData(c *gin.Context) {
	var req attachmentReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	out, err := h.Svc.Artisan.AttachmentData(c.Request.Context(), req.AttachmentID)
	h.respond(c, out, err)
}

type promptHistoryReq struct {
	ImageHash     string `json:"image_hash" form:"image_hash" binding:"omitempty,len=32,hexadecimal"`
	AttachmentID  int64  `json:"attachment_id" form:"attachment_id" binding:"min=0"`
	OperationType string `json:"operation_type" form:"operation_type" binding:"omitempty,oneof=generate edit inspire"`
	Limit         int    `json:"limit" form:"limit" binding:"min=0,max=100"`
}

func (h *Handler) PromptHistory(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req promptHistoryReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	rows, err := h.Svc.Artisan.PromptHistory(c.Request.Context(), uid, history.Query{
		ImageHash:     req.ImageHash,
		AttachmentID:  req.AttachmentID,
		OperationType: req.OperationType,
		Limit:         req.Limit,
	})
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	h.respond(c, gin.H{"history": rows, "count": len(rows)}, nil)
}
