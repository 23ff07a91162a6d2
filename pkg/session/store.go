package session

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions between requests.
type Store interface {
	// Save persists a session keyed by its token.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by token. Returns ErrNotFound when the
	// token is unknown and ErrExpired when the session is past expiry.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes a session by token. Unknown tokens are a no-op.
	Delete(ctx context.Context, token string) error

	// Touch updates the activity timestamp without a full save.
	Touch(ctx context.Context, token string, lastActiveAt time.Time) error
}

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.Token == "" {
		return ErrInvalidToken
	}
	cp := *s
	m.mu.Lock()
	m.sessions[s.Token] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.IsExpired() {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return nil, ErrExpired
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, token string, lastActiveAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return ErrNotFound
	}
	s.LastActiveAt = lastActiveAt
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
