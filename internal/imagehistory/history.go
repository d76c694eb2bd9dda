// Package imagehistory keeps the undo/redo stack of the image editor.
package imagehistory

import (
	"errors"
	"time"
)

const DefaultMaxSize = 20

var (
	ErrNothingToUndo = errors.New("imagehistory: nothing to undo")
	ErrNothingToRedo = errors.New("imagehistory: nothing to redo")
)

type Entry struct {
	ImageBase64 string    `json:"image_base64"`
	Operation   string    `json:"operation"`
	Prompt      string    `json:"prompt,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// History is a bounded list of editor states with a cursor on the current one.
// It is not safe for concurrent use.
type History struct {
	entries []Entry
	cursor  int
	maxSize int
}

func New(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &History{cursor: -1, maxSize: maxSize}
}

// Push drops any redo tail, appends e and evicts the oldest entry past the cap.
func (h *History) Push(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	h.entries = append(h.entries[:h.cursor+1], e)
	h.cursor = len(h.entries) - 1
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[1:]
		h.cursor--
	}
}

func (h *History) Undo() (Entry, error) {
	if !h.CanUndo() {
		return Entry{}, ErrNothingToUndo
	}
	h.cursor--
	return h.entries[h.cursor], nil
}

func (h *History) Redo() (Entry, error) {
	if !h.CanRedo() {
		return Entry{}, ErrNothingToRedo
	}
	h.cursor++
	return h.entries[h.cursor], nil
}

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor < len(h.entries)-1 }

func (h *History) Current() (Entry, bool) {
	if h.cursor < 0 {
		return Entry{}, false
	}
	return h.entries[h.cursor], true
}

func (h *History) Len() int { return len(h.entries) }

func (h *History) Cursor() int { return h.cursor }
