package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/artisan"
	"github.com/suPer8Hu/w3a11y-artisan/internal/imagehistory"
)

type historyPushReq struct {
	ModalSession string `json:"modal_session" form:"modal_session" binding:"required,max=64"`
	ImageData    string `json:"image_data" form:"image_data" binding:"required"`
	Operation    string `json:"operation" form:"operation" binding:"required,oneof=original generate edit convert upload"`
	Prompt       string `json:"prompt" form:"prompt" binding:"max=10000"`
}

type historyMoveReq struct {
	ModalSession string `json:"modal_session" form:"modal_session" binding:"required,max=64"`
}

func historyErr(err error) error {
	if errors.Is(err, imagehistory.ErrNothingToUndo) {
		return apperr.Validation("Nothing to undo.")
	}
	if errors.Is(err, imagehistory.ErrNothingToRedo) {
		return apperr.Validation("Nothing to redo.")
	}
	return err
}

func (h *Handler) HistoryPush(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req historyPushReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	img, _, err := artisan.SanitizeImage(req.ImageData)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	st, err := h.Svc.Images.Push(uid, req.ModalSession, imagehistory.Entry{
		ImageBase64: img,
		Operation:   req.Operation,
		Prompt:      req.Prompt,
	})
	if err != nil {
		h.respond(c, nil, historyErr(err))
		return
	}
	// the client already holds the pushed image
	st.Entry = nil
	h.respond(c, st, nil)
}

func (h *Handler) HistoryUndo(c *gin.Context) {
	h.historyMove(c, h.Svc.Images.Undo)
}

func (h *Handler) HistoryRedo(c *gin.Context) {
	h.historyMove(c, h.Svc.Images.Redo)
}

func (h *Handler) historyMove(c *gin.Context, move func(uint64, string) (imagehistory.State, error)) {
	uid, err := userID(c)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	var req historyMoveReq
	if err := bind(c, &req); err != nil {
		h.respond(c, nil, err)
		return
	}
	st, err := move(uid, req.ModalSession)
	if err != nil {
		h.respond(c, nil, historyErr(err))
		return
	}
	h.respond(c, st, nil)
}
