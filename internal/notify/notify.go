package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TypeError   = "error"
	TypeWarning = "warning"
	TypeInfo    = "info"
	TypeSuccess = "success"

	LowCreditsID = "low_credits"
)

var validTypes = []string{TypeError, TypeWarning, TypeInfo, TypeSuccess}

var ErrInvalidNotice = errors.New("notify: invalid notice")

type Notice struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Persistent bool      `json:"persistent"`
	Context    string    `json:"context,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Manager keeps admin notices per user in a redis hash.
type Manager struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewManager(rdb *redis.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{rdb: rdb, ttl: 7 * 24 * time.Hour, logger: logger}
}

func key(userID uint64) string {
	return fmt.Sprintf("w3a11y_notices:%d", userID)
}

func (m *Manager) Add(ctx context.Context, userID uint64, n Notice) (Notice, error) {
	n.Message = strings.TrimSpace(n.Message)
	if n.Message == "" || len(n.Message) > 1000 {
		return n, ErrInvalidNotice
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if !slices.Contains(validTypes, n.Type) {
		return n, ErrInvalidNotice
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	b, err := json.Marshal(n)
	if err != nil {
		return n, err
	}
	k := key(userID)
	pipe := m.rdb.TxPipeline()
	pipe.HSet(ctx, k, n.ID, b)
	pipe.Expire(ctx, k, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// List returns the user's notices oldest first.
func (m *Manager) List(ctx context.Context, userID uint64) ([]Notice, error) {
	raw, err := m.rdb.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Notice, 0, len(raw))
	for id, v := range raw {
		var n Notice
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			m.logger.Warn("dropping unreadable notice", "user_id", userID, "id", id, "err", err)
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Dismiss removes a notice; dismissing an unknown id is not an error.
func (m *Manager) Dismiss(ctx context.Context, userID uint64, id string) error {
	return m.rdb.HDel(ctx, key(userID), id).Err()
}

// LowCredits raises the persistent low-credit notice. Its id is fixed so repeats overwrite.
func (m *Manager) LowCredits(ctx context.Context, userID uint64) {
	_, err := m.Add(ctx, userID, Notice{
		ID:         LowCreditsID,
		Type:       TypeWarning,
		Message:    "Your W3A11Y credits are exhausted. Purchase more credits to continue generating images and alt text.",
		Persistent: true,
		Context:    "credits",
	})
	if err != nil {
		m.logger.Error("failed to add low credits notice", "user_id", userID, "err", err)
	}
}
