package middlewares

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/anvil/internal"
	"github.com/dmitrymomot/anvil/pkg/session"
)

// Preset name and priority for session loading.
const (
	SessionName     = "session"
	SessionPriority = 50
)

type sessionKey struct{}

// SessionFrom returns the session loaded by the Session preset, or nil
// when the preset did not run for this request.
func SessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return s
}

// SessionConfig configures the session middleware.
type SessionConfig struct {
	// Logger receives load and save failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// SessionOption configures SessionConfig.
type SessionOption func(*SessionConfig)

// WithSessionLogger sets the logger for session failures.
func WithSessionLogger(log *slog.Logger) SessionOption {
	return func(cfg *SessionConfig) {
		cfg.Logger = log
	}
}

// Session returns a descriptor that loads the request's session via the
// manager, exposes it through SessionFrom, and persists changes after
// the handler runs. Store failures are logged and the request proceeds
// with a fresh session rather than failing.
func Session(mgr *session.Manager, opts ...SessionOption) *internal.Middleware {
	cfg := &SessionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &internal.Middleware{
		Name:     SessionName,
		Category: internal.CategorySession,
		Priority: SessionPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				s, err := mgr.Load(r.Context(), r)
				if err != nil {
					cfg.Logger.ErrorContext(r.Context(), "session load failed", "error", err)
					s = session.New(session.DefaultTTL)
				}

				if s.IsNew() {
					mgr.WriteCookie(w, s)
				}

				ctx := context.WithValue(r.Context(), sessionKey{}, s)
				next.ServeHTTP(w, r.WithContext(ctx))

				if err := mgr.Persist(ctx, s); err != nil {
					cfg.Logger.ErrorContext(ctx, "session save failed", "error", err, "session_id", s.ID)
				}
			})
		},
	}
}
