package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	// DefaultCookieName is the session cookie name used when the
	// manager is created without one.
	DefaultCookieName = "sid"

	// DefaultTTL is the session lifetime used when the manager is
	// created without one.
	DefaultTTL = 24 * time.Hour
)

// Manager loads sessions from request cookies and persists changes.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) ManagerOption {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecureCookies marks session cookies Secure.
func WithSecureCookies() ManagerOption {
	return func(m *Manager) { m.secure = true }
}

// NewManager creates a session manager backed by the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		cookieName: DefaultCookieName,
		ttl:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CookieName returns the configured cookie name.
func (m *Manager) CookieName() string { return m.cookieName }

// Load resolves the request's session, creating a new one when the
// cookie is absent, unknown, or expired.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return New(m.ttl), nil
	}

	s, err := m.store.Get(ctx, cookie.Value)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
		return New(m.ttl), nil
	case err != nil:
		return nil, err
	}
	return s, nil
}

// WriteCookie sets the session cookie on the response. Call it before
// the response body is written.
func (m *Manager) WriteCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Save writes the cookie for new sessions and persists via Persist.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s == nil {
		return ErrNotFound
	}
	if s.IsNew() {
		m.WriteCookie(w, s)
	}
	return m.Persist(ctx, s)
}

// Persist stores a dirty or new session. Clean existing sessions only
// get their activity timestamp touched.
func (m *Manager) Persist(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNotFound
	}

	if s.IsDirty() || s.IsNew() {
		s.LastActiveAt = time.Now()
		if err := m.store.Save(ctx, s); err != nil {
			return err
		}
		s.ClearDirty()
		s.ClearNew()
		return nil
	}

	return m.store.Touch(ctx, s.Token, time.Now())
}

// Destroy deletes the session and expires its cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s == nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return m.store.Delete(ctx, s.Token)
}
