package imagehistory

import (
	"fmt"
	"sync"
	"time"
)

// State is what the editor needs after every history operation.
type State struct {
	Entry   *Entry `json:"entry,omitempty"`
	CanUndo bool   `json:"can_undo"`
	CanRedo bool   `json:"can_redo"`
	Length  int    `json:"length"`
	Cursor  int    `json:"cursor"`
}

type slot struct {
	h        *History
	lastSeen time.Time
}

// Store holds one History per user and editor session in memory.
type Store struct {
	mu      sync.Mutex
	slots   map[string]*slot
	maxSize int
	idle    time.Duration
	now     func() time.Time
}

func NewStore(maxSize int, idle time.Duration) *Store {
	if idle <= 0 {
		idle = 2 * time.Hour
	}
	return &Store{slots: make(map[string]*slot), maxSize: maxSize, idle: idle, now: time.Now}
}

func slotKey(userID uint64, session string) string {
	return fmt.Sprintf("%d:%s", userID, session)
}

// with runs fn on the session's history under the store lock and evicts idle sessions.
func (s *Store) with(userID uint64, session string, fn func(h *History) (*Entry, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, sl := range s.slots {
		if now.Sub(sl.lastSeen) > s.idle {
			delete(s.slots, k)
		}
	}

	k := slotKey(userID, session)
	sl, ok := s.slots[k]
	if !ok {
		sl = &slot{h: New(s.maxSize)}
		s.slots[k] = sl
	}
	sl.lastSeen = now

	e, err := fn(sl.h)
	if err != nil {
		return State{}, err
	}
	return State{
		Entry:   e,
		CanUndo: sl.h.CanUndo(),
		CanRedo: sl.h.CanRedo(),
		Length:  sl.h.Len(),
		Cursor:  sl.h.Cursor(),
	}, nil
}

func (s *Store) Push(userID uint64, session string, e Entry) (State, error) {
	return s.with(userID, session, func(h *History) (*Entry, error) {
		h.Push(e)
		cur, _ := h.Current()
		return &cur, nil
	})
}

func (s *Store) Undo(userID uint64, session string) (State, error) {
	return s.with(userID, session, func(h *History) (*Entry, error) {
		e, err := h.Undo()
		if err != nil {
			return nil, err
		}
		return &e, nil
	})
}

func (s *Store) Redo(userID uint64, session string) (State, error) {
	return s.with(userID, session, func(h *History) (*Entry, error) {
		e, err := h.Redo()
		if err != nil {
			return nil, err
		}
		return &e, nil
	})
}

// Reset forgets a session, used when the editor closes.
func (s *Store) Reset(userID uint64, session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slotKey(userID, session))
}
