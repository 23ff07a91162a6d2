package anvil

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/anvil/internal"
	"github.com/dmitrymomot/anvil/pkg/adapter"
	"github.com/dmitrymomot/anvil/pkg/health"
	"github.com/dmitrymomot/anvil/pkg/logger"
	"github.com/dmitrymomot/anvil/pkg/session"
)

// Type aliases - public API
type (
	// Server orchestrates middleware, plugins, routes and lifecycle.
	Server = internal.Server

	// Option configures the server at construction time.
	Option = internal.Option

	// Category classifies middleware into application phases.
	Category = internal.Category

	// Middleware is a registered middleware descriptor.
	Middleware = internal.Middleware

	// MiddlewareFunc wraps an http.Handler in the standard chain shape.
	MiddlewareFunc = internal.MiddlewareFunc

	// ErrorHandlerFunc handles errors surfaced by route handlers. A nil
	// return marks the error handled and stops the chain.
	ErrorHandlerFunc = internal.ErrorHandlerFunc

	// HandlerFunc is the error-returning route handler signature.
	HandlerFunc = internal.HandlerFunc

	// Route declares a single endpoint within a route group.
	Route = internal.Route

	// RouteGroup registers routes under a shared prefix.
	RouteGroup = internal.RouteGroup

	// UploadSpec stages a multipart file upload ahead of the handler.
	UploadSpec = internal.UploadSpec

	// Plugin is the identity interface for server extensions. Optional
	// capabilities (routes, middleware, events, lifecycle hooks) are
	// separate interfaces detected at load time.
	Plugin = internal.Plugin

	// Event is the value passed to event handlers.
	Event = internal.Event

	// EventHandler receives emitted events.
	EventHandler = internal.EventHandler

	// AuthRequirement is a route's declarative auth demand, either a
	// Capability or a Roles set.
	AuthRequirement = internal.AuthRequirement

	// Capability names a registered auth handler.
	Capability = internal.Capability

	// Roles demands the configured role handler with the listed roles.
	Roles = internal.Roles

	// AuthOption configures auth resolution.
	AuthOption = internal.AuthOption

	// RoleHandlerFunc builds middleware enforcing a role set.
	RoleHandlerFunc = internal.RoleHandlerFunc

	// FallbackHandlerFunc builds middleware for unmatched capabilities.
	FallbackHandlerFunc = internal.FallbackHandlerFunc

	// HealthOption configures health check endpoints.
	HealthOption = internal.HealthOption

	// Adapter is a managed external connection (database, cache, queue).
	Adapter = adapter.Adapter

	// ContextExtractor extracts a slog attribute from context.
	// Used with logger.New to add request-scoped values to logs.
	ContextExtractor = logger.ContextExtractor

	// Session represents a user session.
	Session = session.Session

	// SessionStore defines the interface for session persistence.
	SessionStore = session.Store
)

// Middleware categories, applied in this order.
const (
	CategorySecurity    = internal.CategorySecurity
	CategoryParser      = internal.CategoryParser
	CategorySession     = internal.CategorySession
	CategoryLogging     = internal.CategoryLogging
	CategoryCompression = internal.CategoryCompression
	CategoryStatic      = internal.CategoryStatic
	CategoryCustom      = internal.CategoryCustom
)

// Lifecycle event names emitted by the server.
const (
	EventBeforeStart = internal.EventBeforeStart
	EventAfterStart  = internal.EventAfterStart
	EventBeforeStop  = internal.EventBeforeStop
	EventAfterStop   = internal.EventAfterStop
)

// Constructors

// New creates a server with the given options.
//
// Example:
//
//	srv, err := anvil.New(
//	    anvil.WithLogger(log),
//	    anvil.WithMiddlewares(
//	        middlewares.Helmet(),
//	        middlewares.CORS(),
//	        middlewares.JSON(),
//	    ),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = srv.Run(ctx, ":8080")
func New(opts ...Option) (*Server, error) {
	return internal.NewServer(opts...)
}

// Options

// WithLogger sets the server logger. A nil logger keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return internal.WithLogger(l)
}

// WithMiddlewares registers middleware descriptors at construction time.
func WithMiddlewares(ms ...*Middleware) Option {
	return internal.WithMiddlewares(ms...)
}

// WithAuth configures auth resolution for routes.
func WithAuth(opts ...AuthOption) Option {
	return internal.WithAuth(opts...)
}

// WithAdapter registers a data-access adapter, connected on Start and
// disconnected on Shutdown.
func WithAdapter(a Adapter) Option {
	return internal.WithAdapter(a)
}

// WithErrorFallback sets the terminal error handler used when the
// error-handling chain leaves an error unhandled.
func WithErrorFallback(eh ErrorHandlerFunc) Option {
	return internal.WithErrorFallback(eh)
}

// WithShutdownTimeout bounds the graceful shutdown performed by Run.
func WithShutdownTimeout(d time.Duration) Option {
	return internal.WithShutdownTimeout(d)
}

// WithHealthChecks enables liveness and readiness endpoints.
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

// Health options

// WithLivenessPath sets a custom liveness endpoint path.
func WithLivenessPath(path string) HealthOption {
	return internal.WithLivenessPath(path)
}

// WithReadinessPath sets a custom readiness endpoint path.
func WithReadinessPath(path string) HealthOption {
	return internal.WithReadinessPath(path)
}

// WithReadinessCheck adds a named readiness check.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return internal.WithReadinessCheck(name, fn)
}

// Auth options

// WithAuthHandler registers middleware for a named capability.
func WithAuthHandler(name string, mw MiddlewareFunc) AuthOption {
	return internal.WithAuthHandler(name, mw)
}

// WithRoleHandler sets the handler used for Roles requirements.
func WithRoleHandler(fn RoleHandlerFunc) AuthOption {
	return internal.WithRoleHandler(fn)
}

// WithAuthFallback sets the handler used for capabilities without a
// registered handler.
func WithAuthFallback(fn FallbackHandlerFunc) AuthOption {
	return internal.WithAuthFallback(fn)
}
