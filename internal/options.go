package internal

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/anvil/pkg/adapter"
	"github.com/dmitrymomot/anvil/pkg/health"
)

// Option configures the server at construction time. Options returning an
// error abort NewServer.
type Option func(*Server) error

// WithLogger sets the server logger. A nil logger keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// WithAuth configures auth resolution for routes.
func WithAuth(opts ...AuthOption) Option {
	return func(s *Server) error {
		for _, opt := range opts {
			opt(s.auth)
		}
		return nil
	}
}

// WithMiddlewares registers middleware descriptors. Registration-time
// validation applies: duplicates, bad categories, unknown dependencies and
// missing handlers all fail construction.
func WithMiddlewares(ms ...*Middleware) Option {
	return func(s *Server) error {
		return s.middleware.RegisterAll(ms...)
	}
}

// WithAdapter registers a data-access adapter. All registered adapters are
// connected during Start and disconnected best-effort during Shutdown.
func WithAdapter(a adapter.Adapter) Option {
	return func(s *Server) error {
		return s.adapters.Register(a)
	}
}

// WithErrorFallback sets the terminal error handler used when the applied
// error-handling chain passes an error all the way through.
func WithErrorFallback(eh ErrorHandlerFunc) Option {
	return func(s *Server) error {
		s.errorFallback = eh
		return nil
	}
}

// WithShutdownTimeout bounds the graceful shutdown performed by Run.
// Defaults to 30 seconds.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d > 0 {
			s.shutdownTimeout = d
		}
		return nil
	}
}

// healthConfig holds health endpoint configuration.
type healthConfig struct {
	checks        health.Checks
	livenessPath  string
	readinessPath string
}

// Default health check paths.
const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

// HealthOption configures health check endpoints.
type HealthOption func(*healthConfig)

// WithLivenessPath sets a custom liveness endpoint path.
func WithLivenessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.livenessPath = path
		}
	}
}

// WithReadinessPath sets a custom readiness endpoint path.
func WithReadinessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.readinessPath = path
		}
	}
}

// WithReadinessCheck adds a named readiness check. Checks run in parallel
// during the readiness probe.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(c *healthConfig) {
		if c.checks == nil {
			c.checks = make(health.Checks)
		}
		c.checks[name] = fn
	}
}

// WithHealthChecks enables liveness and readiness endpoints.
func WithHealthChecks(opts ...HealthOption) Option {
	return func(s *Server) error {
		cfg := &healthConfig{
			livenessPath:  defaultLivenessPath,
			readinessPath: defaultReadinessPath,
		}
		for _, opt := range opts {
			opt(cfg)
		}
		s.healthConfig = cfg
		return nil
	}
}
