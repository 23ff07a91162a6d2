package internal

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/anvil/pkg/adapter"
	"github.com/dmitrymomot/anvil/pkg/health"
)

// Default server timeouts (hardcoded, opinionated).
const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// Server status values.
const (
	statusOffline int32 = iota
	statusStarting
	statusOnline
	statusShuttingDown
)

// Server orchestrates the plugin-based application: middleware registry and
// application engine, plugin loader, event bus, auth resolution, prefix
// routers and adapter lifecycle, all layered over a chi router.
type Server struct {
	// root carries the applied middleware chain; routes live on a child
	// router mounted at start time, so plugins can keep registering routes
	// up until the middleware phases run.
	root   *chi.Mux
	routes *chi.Mux

	middleware *MiddlewareRegistry
	engine     *Engine
	plugins    *PluginLoader
	events     *EventBus
	auth       *AuthConfig
	routeMgr   *RouteManager
	adapters   *adapter.Manager
	logger     *slog.Logger

	mu            sync.RWMutex
	errorChain    []ErrorHandlerFunc
	errorFallback ErrorHandlerFunc

	status     atomic.Int32
	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error

	shutdownTimeout time.Duration
	healthConfig    *healthConfig
}

// NewServer creates a server with the given options. Option errors (invalid
// descriptors, duplicate adapters) surface here, before anything runs.
func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		root:            chi.NewRouter(),
		routes:          chi.NewRouter(),
		middleware:      NewMiddlewareRegistry(),
		auth:            NewAuthConfig(),
		adapters:        adapter.NewManager(),
		logger:          discardLogger(),
		shutdownTimeout: defaultShutdownTimeout,
	}
	s.events = NewEventBus(s.logger)
	s.plugins = NewPluginLoader(s, s.logger)
	s.engine = NewEngine(s.middleware, s, s.logger)
	s.routeMgr = newRouteManager(s)

	var errs []error
	for _, opt := range opts {
		if err := opt(s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Options may replace the logger; rebind the components that hold it.
	s.events.logger = s.logger
	s.plugins.logger = s.logger
	s.engine.logger = s.logger

	if s.healthConfig != nil {
		s.routes.Get(s.healthConfig.livenessPath, health.LivenessHandler())
		s.routes.Get(s.healthConfig.readinessPath, health.ReadinessHandler(s.healthConfig.checks))
	}

	return s, nil
}

// Accessors for the subsystems plugins and user code interact with.

// Middleware returns the middleware registry.
func (s *Server) Middleware() *MiddlewareRegistry { return s.middleware }

// Auth returns the auth configuration.
func (s *Server) Auth() *AuthConfig { return s.auth }

// Adapters returns the adapter manager.
func (s *Server) Adapters() *adapter.Manager { return s.adapters }

// Events returns the server's event bus.
func (s *Server) Events() *EventBus { return s.events }

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// Routes returns the route registrar for a prefix, creating it on first
// use. Prefixes are normalized, so "api", "/api" and "/api/" share a group.
func (s *Server) Routes(prefix string) *RouteGroup {
	return s.routeMgr.Group(prefix)
}

// RouteCount returns the number of routes registered under a prefix.
func (s *Server) RouteCount(prefix string) int {
	return s.routeMgr.CountByPrefix(prefix)
}

// RouteCountByMethod returns the number of routes registered with a method.
func (s *Server) RouteCountByMethod(method string) int {
	return s.routeMgr.CountByMethod(method)
}

// Use registers and loads a plugin. See PluginLoader for the load sequence
// and the partial-effect semantics of a failing install hook.
func (s *Server) Use(ctx context.Context, p Plugin) error {
	return s.plugins.Use(ctx, p)
}

// Plugins returns the plugin loader.
func (s *Server) Plugins() *PluginLoader { return s.plugins }

// On subscribes a handler to a named event.
func (s *Server) On(event string, h EventHandler) { s.events.On(event, h) }

// Off removes a handler from a named event.
func (s *Server) Off(event string, h EventHandler) { s.events.Off(event, h) }

// Emit dispatches an event synchronously, swallowing handler failures.
func (s *Server) Emit(event string, payload any) { s.events.Emit(event, payload) }

// EmitContext dispatches an event sequentially under ctx.
func (s *Server) EmitContext(ctx context.Context, event string, payload any) error {
	return s.events.EmitContext(ctx, event, payload)
}

// ApplyCategory applies a single middleware category. Normally Start drives
// all phases; manual application is for tests and advanced setups.
func (s *Server) ApplyCategory(cat Category) error {
	return s.engine.ApplyCategory(cat)
}

// Mount implements Mounter: append a standard middleware to the chain.
func (s *Server) Mount(mw MiddlewareFunc) {
	s.root.Use(mw)
}

// MountError implements Mounter: append to the error-handling chain.
func (s *Server) MountError(eh ErrorHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorChain = append(s.errorChain, eh)
}

// mountSubrouter attaches a prefix group's router.
func (s *Server) mountSubrouter(prefix string, sub chi.Router) {
	s.routes.Mount(prefix, sub)
}

// handleError walks the applied error-handling chain in application order.
// A handler returning nil stops the chain; if every handler passes the
// error along, the fallback answers with a bare 500.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	s.mu.RLock()
	chain := append([]ErrorHandlerFunc(nil), s.errorChain...)
	fallback := s.errorFallback
	s.mu.RUnlock()

	for _, eh := range chain {
		if err = eh(w, r, err); err == nil {
			return
		}
	}

	if fallback != nil {
		if fallback(w, r, err) == nil {
			return
		}
	}

	s.logger.Error("unhandled route error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	return s.status.Load() == statusOnline
}

// Addr returns the bound listener address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start brings the server online:
//
//	connect adapters → apply middleware phases → beforeStart (sequential) →
//	mount routes → bind listener → afterStart (sequential).
//
// Adapters connect before beforeStart fires, so hooks can rely on live
// connections. Any failure aborts the start and leaves already-performed
// side effects in place; there is no automatic rollback or retry.
func (s *Server) Start(ctx context.Context, addr string) error {
	if !s.status.CompareAndSwap(statusOffline, statusStarting) {
		return ErrServerAlreadyRunning
	}

	if err := s.adapters.ConnectAll(ctx); err != nil {
		s.status.Store(statusOffline)
		return err
	}

	if err := s.engine.ApplyAll(); err != nil {
		s.status.Store(statusOffline)
		return err
	}

	if err := s.events.EmitContext(ctx, EventBeforeStart, s); err != nil {
		s.status.Store(statusOffline)
		return err
	}

	// Routes mount after the middleware chain is final: chi requires all
	// middleware on a mux before its first route.
	s.root.Mount("/", s.routes)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.status.Store(statusOffline)
		return err
	}

	server := &http.Server{
		Handler:           s.root,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = server
	s.serveErr = make(chan error, 1)
	s.mu.Unlock()

	go func() {
		s.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	s.status.Store(statusOnline)

	if err := s.events.EmitContext(ctx, EventAfterStart, s); err != nil {
		return err
	}
	return nil
}

// Shutdown takes the server offline:
//
//	beforeStop (sequential) → close listener → disconnect adapters
//	(best-effort, logged) → afterStop → offline.
//
// Shutdown is idempotent: a second call while shutting down (or after) is a
// no-op, and the lifecycle events fire exactly once. A listener that will
// not close makes Shutdown fail loudly; adapter disconnect errors do not.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.status.CompareAndSwap(statusOnline, statusShuttingDown) {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.events.EmitContext(ctx, EventBeforeStop, s); err != nil {
		s.logger.Error("beforeStop interrupted", slog.Any("error", err))
	}

	var httpErr error
	s.mu.RLock()
	server := s.httpServer
	s.mu.RUnlock()
	if server != nil {
		httpErr = server.Shutdown(ctx)
	}

	if err := s.adapters.DisconnectAll(ctx); err != nil {
		s.logger.Error("adapter disconnect failed", slog.Any("error", err))
	}

	s.events.Emit(EventAfterStop, s)
	s.status.Store(statusOffline)

	if httpErr != nil {
		return httpErr
	}
	s.logger.Info("shutdown completed")
	return nil
}

// Run starts the server and blocks until the context is cancelled, a
// SIGINT/SIGTERM arrives, or the listener fails. Shutdown then runs with
// the configured timeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := s.Start(ctx, addr); err != nil {
		return err
	}

	select {
	case err, ok := <-s.serveErr:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer shutdownCancel()
	return s.Shutdown(shutdownCtx)
}
