package middlewares

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/dmitrymomot/anvil/internal"
)

// Preset name and priority for panic recovery. It outranks every other
// security preset so nothing downstream can crash the connection.
const (
	RecoverName     = "recover"
	RecoverPriority = 110
)

// DefaultStackSize is the default maximum stack trace size in bytes.
const DefaultStackSize = 4096

// RecoverConfig configures the recover middleware.
type RecoverConfig struct {
	Logger            *slog.Logger
	StackSize         int
	DisablePrintStack bool
}

// RecoverOption configures RecoverConfig.
type RecoverOption func(*RecoverConfig)

// WithRecoverLogger sets the logger for recovered panics.
func WithRecoverLogger(log *slog.Logger) RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.Logger = log
	}
}

// WithRecoverStackSize sets the maximum stack trace size.
func WithRecoverStackSize(size int) RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.StackSize = size
	}
}

// WithRecoverDisablePrintStack disables including stack traces in logs.
func WithRecoverDisablePrintStack() RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.DisablePrintStack = true
	}
}

// Recover returns a descriptor that recovers from handler panics, logs
// them, and answers with 500.
func Recover(opts ...RecoverOption) *internal.Middleware {
	cfg := &RecoverConfig{
		StackSize: DefaultStackSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &internal.Middleware{
		Name:     RecoverName,
		Category: internal.CategorySecurity,
		Priority: RecoverPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if rec := recover(); rec != nil {
						if cfg.DisablePrintStack {
							cfg.Logger.ErrorContext(r.Context(), "panic recovered", "panic", rec)
						} else {
							stack := make([]byte, cfg.StackSize)
							n := runtime.Stack(stack, false)
							cfg.Logger.ErrorContext(r.Context(), "panic recovered", "panic", rec, "stack", string(stack[:n]))
						}
						http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					}
				}()
				next.ServeHTTP(w, r)
			})
		},
	}
}
