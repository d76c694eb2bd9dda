package imagehistory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(i int) Entry {
	return Entry{ImageBase64: fmt.Sprintf("img-%d", i), Operation: "edit"}
}

func TestHistory_UndoRedo(t *testing.T) {
	h := New(0)
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	_, ok := h.Current()
	assert.False(t, ok)

	h.Push(entry(0))
	h.Push(entry(1))
	h.Push(entry(2))

	e, err := h.Undo()
	require.NoError(t, err)
	assert.Equal(t, "img-1", e.ImageBase64)
	e, err = h.Undo()
	require.NoError(t, err)
	assert.Equal(t, "img-0", e.ImageBase64)
	_, err = h.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)

	e, err = h.Redo()
	require.NoError(t, err)
	assert.Equal(t, "img-1", e.ImageBase64)
}

func TestHistory_PushTruncatesRedoTail(t *testing.T) {
	h := New(0)
	h.Push(entry(0))
	h.Push(entry(1))
	h.Push(entry(2))
	_, _ = h.Undo()
	_, _ = h.Undo()

	h.Push(entry(9))
	assert.Equal(t, 2, h.Len())
	assert.False(t, h.CanRedo())
	cur, _ := h.Current()
	assert.Equal(t, "img-9", cur.ImageBase64)
	_, err := h.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestHistory_DropsOldestPastCap(t *testing.T) {
	h := New(DefaultMaxSize)
	for i := 0; i < DefaultMaxSize+5; i++ {
		h.Push(entry(i))
	}
	assert.Equal(t, DefaultMaxSize, h.Len())
	assert.Equal(t, DefaultMaxSize-1, h.Cursor())

	var last Entry
	for h.CanUndo() {
		last, _ = h.Undo()
	}
	assert.Equal(t, "img-5", last.ImageBase64)
}

func TestStore_IsolatesSessionsAndEvictsIdle(t *testing.T) {
	s := NewStore(3, time.Hour)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	_, err := s.Push(1, "modal-a", entry(0))
	require.NoError(t, err)
	st, err := s.Push(1, "modal-a", entry(1))
	require.NoError(t, err)
	assert.True(t, st.CanUndo)
	assert.Equal(t, 2, st.Length)

	_, err = s.Undo(1, "modal-b")
	assert.ErrorIs(t, err, ErrNothingToUndo)
	_, err = s.Undo(2, "modal-a")
	assert.ErrorIs(t, err, ErrNothingToUndo)

	st, err = s.Undo(1, "modal-a")
	require.NoError(t, err)
	require.NotNil(t, st.Entry)
	assert.Equal(t, "img-0", st.Entry.ImageBase64)
	assert.True(t, st.CanRedo)

	clock = clock.Add(2 * time.Hour)
	_, err = s.Redo(1, "modal-a")
	assert.ErrorIs(t, err, ErrNothingToRedo)
}
