package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("bulk: session not found")
	ErrConflict        = errors.New("bulk: concurrent session update")
)

// Store persists sessions as opaque blobs with a TTL.
type Store interface {
	Create(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	// Update applies fn atomically; fn returns the TTL the new state should live for.
	// fn may run more than once if a concurrent writer interferes.
	Update(ctx context.Context, id string, fn func(*Session) (time.Duration, error)) (*Session, error)
	// Acquire takes a short exclusive lease so only one caller runs a batch at a time.
	Acquire(ctx context.Context, id string, lease time.Duration) (release func(), ok bool, err error)
}

const keyPrefix = "w3a11y_bulk_session_"

// maxTxRetries bounds optimistic retries under WATCH contention.
const maxTxRetries = 5

type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: func() time.Time { return time.Now().UTC() }}
}

func sessionKey(id string) string { return keyPrefix + id }
func leaseKey(id string) string   { return keyPrefix + id + ":lock" }

func (r *RedisStore) Create(ctx context.Context, s *Session, ttl time.Duration) error {
	now := r.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, sessionKey(s.ID), b, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bulk: session %s already exists", s.ID)
	}
	return nil
}

func decode(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("bulk: decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}

func (r *RedisStore) Update(ctx context.Context, id string, fn func(*Session) (time.Duration, error)) (*Session, error) {
	k := sessionKey(id)
	var out *Session

	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		s, err := decode(b)
		if err != nil {
			return err
		}
		ttl, err := fn(s)
		if err != nil {
			return err
		}
		s.UpdatedAt = r.now()
		nb, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, nb, ttl)
			return nil
		})
		if err == nil {
			out = s
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, k)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisStore) Acquire(ctx context.Context, id string, lease time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	k := leaseKey(id)
	ok, err := r.rdb.SetNX(ctx, k, token, lease).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	release := func() {
		// a fresh context: the caller's may already be cancelled
		cctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseScript.Run(cctx, r.rdb, []string{k}, token).Err()
	}
	return release, true, nil
}
