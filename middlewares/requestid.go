package middlewares

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/anvil/internal"
	"github.com/dmitrymomot/anvil/pkg/logger"
)

// Preset name and priority for request ID assignment. It sits near the
// top of the logging category so the ID is available to the request
// logger and everything after it.
const (
	RequestIDName     = "request-id"
	RequestIDPriority = 60
)

type requestIDKey struct{}

// DefaultRequestIDHeaders are the headers checked (in order) for an
// existing request ID.
var DefaultRequestIDHeaders = []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID"}

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	Generator      func() string // ID generator function
	ResponseHeader string        // response header name
	Headers        []string      // headers checked for an existing ID, in order
}

// RequestIDOption configures RequestIDConfig.
type RequestIDOption func(*RequestIDConfig)

// WithRequestIDHeaders sets the headers checked for existing request IDs.
func WithRequestIDHeaders(headers ...string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.Headers = headers
	}
}

// WithRequestIDGenerator sets a custom ID generator function.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.Generator = gen
	}
}

// WithRequestIDResponseHeader sets the response header name.
func WithRequestIDResponseHeader(header string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.ResponseHeader = header
	}
}

// RequestID returns a descriptor that assigns a unique ID to each
// request. An ID found in the request headers is preserved to keep
// upstream tracing intact; otherwise one is generated.
func RequestID(opts ...RequestIDOption) *internal.Middleware {
	cfg := &RequestIDConfig{
		Headers:        DefaultRequestIDHeaders,
		Generator:      uuid.NewString,
		ResponseHeader: "X-Request-ID",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &internal.Middleware{
		Name:     RequestIDName,
		Category: internal.CategoryLogging,
		Priority: RequestIDPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var reqID string
				for _, header := range cfg.Headers {
					if v := r.Header.Get(header); v != "" {
						reqID = v
						break
					}
				}
				if reqID == "" {
					reqID = cfg.Generator()
				}

				w.Header().Set(cfg.ResponseHeader, reqID)
				ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		},
	}
}

// RequestIDFrom extracts the request ID from the request context.
// Returns an empty string if no request ID is set.
func RequestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestIDExtractor returns a logger.ContextExtractor that adds
// "request_id" to log entries carrying a request context.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}
}
