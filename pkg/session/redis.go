package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore persists sessions in Redis with TTL-based expiry.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps a connected Redis client as a session Store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

type redisSession struct {
	ID           string         `json:"id"`
	UserID       *string        `json:"user_id,omitempty"`
	Values       map[string]any `json:"values,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.Token == "" {
		return ErrInvalidToken
	}

	payload, err := json.Marshal(redisSession{
		ID:           s.ID,
		UserID:       s.UserID,
		Values:       s.Values,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		ExpiresAt:    s.ExpiresAt,
	})
	if err != nil {
		return err
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}
	return r.client.Set(ctx, redisKeyPrefix+s.Token, payload, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var stored redisSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}

	s := &Session{
		ID:           stored.ID,
		Token:        token,
		UserID:       stored.UserID,
		Values:       stored.Values,
		CreatedAt:    stored.CreatedAt,
		LastActiveAt: stored.LastActiveAt,
		ExpiresAt:    stored.ExpiresAt,
	}
	if s.IsExpired() {
		_ = r.Delete(ctx, token)
		return nil, ErrExpired
	}
	return s, nil
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, redisKeyPrefix+token).Err()
}

func (r *RedisStore) Touch(ctx context.Context, token string, lastActiveAt time.Time) error {
	s, err := r.Get(ctx, token)
	if err != nil {
		return err
	}
	s.LastActiveAt = lastActiveAt
	return r.Save(ctx, s)
}
