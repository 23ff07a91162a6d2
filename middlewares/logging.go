package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/anvil/internal"
)

// Preset name and priority for the request logger.
const (
	RequestLoggerName     = "request-logger"
	RequestLoggerPriority = 50
)

// RequestLoggerConfig configures the request logging middleware.
type RequestLoggerConfig struct {
	// Logger receives the request entries. Defaults to slog.Default().
	Logger *slog.Logger

	// SkipPaths lists exact request paths that are not logged, such as
	// health probes.
	SkipPaths []string
}

// RequestLoggerOption configures RequestLoggerConfig.
type RequestLoggerOption func(*RequestLoggerConfig)

// WithRequestLogger sets the destination logger.
func WithRequestLogger(log *slog.Logger) RequestLoggerOption {
	return func(cfg *RequestLoggerConfig) {
		cfg.Logger = log
	}
}

// WithSkipPaths excludes exact paths from request logging.
func WithSkipPaths(paths ...string) RequestLoggerOption {
	return func(cfg *RequestLoggerConfig) {
		cfg.SkipPaths = paths
	}
}

// RequestLogger returns a logging descriptor that emits one structured
// entry per request with method, path, status, size, and duration.
func RequestLogger(opts ...RequestLoggerOption) *internal.Middleware {
	cfg := &RequestLoggerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return &internal.Middleware{
		Name:     RequestLoggerName,
		Category: internal.CategoryLogging,
		Priority: RequestLoggerPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, ok := skip[r.URL.Path]; ok {
					next.ServeHTTP(w, r)
					return
				}

				ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
				start := time.Now()
				next.ServeHTTP(ww, r)

				attrs := []any{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				}
				if reqID := RequestIDFrom(r); reqID != "" {
					attrs = append(attrs, slog.String("request_id", reqID))
				}

				switch {
				case ww.Status() >= http.StatusInternalServerError:
					cfg.Logger.ErrorContext(r.Context(), "request completed", attrs...)
				case ww.Status() >= http.StatusBadRequest:
					cfg.Logger.WarnContext(r.Context(), "request completed", attrs...)
				default:
					cfg.Logger.InfoContext(r.Context(), "request completed", attrs...)
				}
			})
		},
	}
}
