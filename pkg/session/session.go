// Package session provides cookie-backed sessions with pluggable storage.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session carries per-visitor state across requests.
type Session struct {
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time

	UserID *string        // nil = anonymous session
	Values map[string]any // arbitrary session data
	ID     string
	Token  string // cookie token, distinct from ID

	dirty bool
	isNew bool
}

// New creates a fresh session with generated ID and token.
func New(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		Token:        uuid.NewString(),
		Values:       make(map[string]any),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(ttl),
		isNew:        true,
		dirty:        true,
	}
}

// IsAuthenticated reports whether the session has an associated user.
func (s *Session) IsAuthenticated() bool {
	return s.UserID != nil && *s.UserID != ""
}

// SetValue stores a value and marks the session dirty.
func (s *Session) SetValue(key string, val any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = val
	s.dirty = true
}

// GetValue retrieves a value from the session.
func (s *Session) GetValue(key string) (any, bool) {
	if s.Values == nil {
		return nil, false
	}
	val, ok := s.Values[key]
	return val, ok
}

// DeleteValue removes a value, marking the session dirty only if the
// key existed.
func (s *Session) DeleteValue(key string) {
	if s.Values == nil {
		return
	}
	if _, exists := s.Values[key]; exists {
		delete(s.Values, key)
		s.dirty = true
	}
}

// Authenticate binds the session to a user.
func (s *Session) Authenticate(userID string) {
	s.UserID = &userID
	s.dirty = true
}

// IsDirty reports whether the session has unsaved changes.
func (s *Session) IsDirty() bool { return s.dirty }

// ClearDirty marks the session as persisted.
func (s *Session) ClearDirty() { s.dirty = false }

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool { return s.isNew }

// ClearNew marks the session as persisted for the first time.
func (s *Session) ClearNew() { s.isNew = false }

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Value retrieves a session value with type safety.
func Value[T any](s *Session, key string) (T, error) {
	var zero T
	if s == nil {
		return zero, ErrNotFound
	}

	val, ok := s.GetValue(key)
	if !ok {
		return zero, ErrNotFound
	}

	typed, ok := val.(T)
	if !ok {
		return zero, errors.New("session: type mismatch for key: " + key)
	}
	return typed, nil
}

// ValueOr returns a default when the key is missing or mistyped.
func ValueOr[T any](s *Session, key string, defaultVal T) T {
	val, err := Value[T](s, key)
	if err != nil {
		return defaultVal
	}
	return val
}
