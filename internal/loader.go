package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PluginLoader resolves plugin dependencies and sequences installation.
//
// Loading is not transactional: middleware, routes and event handlers
// contributed by a plugin are registered before its install hook runs, and
// a failing hook leaves them registered while the plugin itself stays
// unloaded. Callers that retry a failed Use must account for those partial
// effects. The non-transactional behavior is deliberate and matches the
// append-only middleware chain underneath.
//
// The loader's lock is held for the whole load sequence, install hooks
// included. Install hooks must not call back into Use or Register; plugin
// prerequisites belong in Dependencies, which the loader resolves itself.
type PluginLoader struct {
	server *Server
	logger *slog.Logger

	mu      sync.Mutex
	plugins map[string]Plugin
	states  map[string]pluginState
	order   []string
}

// NewPluginLoader creates a loader bound to a server.
func NewPluginLoader(s *Server, logger *slog.Logger) *PluginLoader {
	if logger == nil {
		logger = discardLogger()
	}
	return &PluginLoader{
		server:  s,
		logger:  logger,
		plugins: make(map[string]Plugin),
		states:  make(map[string]pluginState),
	}
}

// Use registers and loads a plugin. A plugin with an already registered
// name is rejected outright, never silently ignored.
func (l *PluginLoader) Use(ctx context.Context, p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	if p.Name() == "" {
		return ErrEmptyPluginName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.plugins[p.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePlugin, p.Name())
	}
	l.plugins[p.Name()] = p
	l.order = append(l.order, p.Name())

	return l.load(ctx, p)
}

// Register adds a plugin without loading it, so it can satisfy another
// plugin's dependency and be loaded on demand.
func (l *PluginLoader) Register(p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	if p.Name() == "" {
		return ErrEmptyPluginName
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.plugins[p.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePlugin, p.Name())
	}
	l.plugins[p.Name()] = p
	l.order = append(l.order, p.Name())
	return nil
}

// Loaded reports whether the named plugin completed loading.
func (l *PluginLoader) Loaded(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[name] == pluginLoaded
}

// Names returns registered plugin names in registration order.
func (l *PluginLoader) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// load runs the full load sequence for a plugin. Callers must hold l.mu.
//
// Sequence: resolve plugin dependencies depth-first → verify required
// middleware is registered → register contributed middleware → register
// contributed routes (order-preserving per prefix) → subscribe contributed
// event handlers and lifecycle hooks → run the install hook → mark loaded.
func (l *PluginLoader) load(ctx context.Context, p Plugin) error {
	name := p.Name()

	switch l.states[name] {
	case pluginLoaded:
		// Loading is idempotent once complete.
		return nil
	case pluginLoading:
		return fmt.Errorf("%w: %q", ErrPluginDependencyCycle, name)
	}

	l.states[name] = pluginLoading

	if dep, ok := p.(PluginDependent); ok {
		for _, depName := range dep.Dependencies() {
			depPlugin, registered := l.plugins[depName]
			if !registered {
				l.states[name] = pluginUnregistered
				return fmt.Errorf("%w: plugin %q requires %q", ErrUnknownPluginDependency, name, depName)
			}
			if err := l.load(ctx, depPlugin); err != nil {
				l.states[name] = pluginUnregistered
				return err
			}
		}
	}

	// Required middleware only needs to be registered; its category may not
	// have been applied yet, so it can start running later than this load.
	if req, ok := p.(MiddlewareRequirer); ok {
		for _, mwName := range req.RequiredMiddleware() {
			if !l.server.Middleware().Has(mwName) {
				l.states[name] = pluginUnregistered
				return fmt.Errorf("%w: plugin %q requires %q", ErrRequiredMiddlewareMissing, name, mwName)
			}
		}
	}

	if provider, ok := p.(MiddlewareProvider); ok {
		for _, m := range provider.Middlewares() {
			if err := l.server.Middleware().Register(m); err != nil {
				l.states[name] = pluginUnregistered
				return fmt.Errorf("plugin %q: %w", name, err)
			}
		}
	}

	if provider, ok := p.(RouteProvider); ok {
		for prefix, routes := range provider.Routes() {
			group := l.server.Routes(prefix)
			for _, rt := range routes {
				if err := group.Register(rt); err != nil {
					l.states[name] = pluginUnregistered
					return fmt.Errorf("plugin %q: %w", name, err)
				}
			}
		}
	}

	if sub, ok := p.(EventSubscriber); ok {
		for event, handler := range sub.Events() {
			l.server.On(event, handler)
		}
	}
	l.subscribeHooks(p)

	if installer, ok := p.(Installer); ok {
		if err := installer.Install(ctx, l.server); err != nil {
			// Steps above already ran; their effects stay. The plugin is
			// not marked loaded, so a later Use of the same name fails on
			// the duplicate check rather than re-installing.
			l.states[name] = pluginUnregistered
			return fmt.Errorf("%w: %q: %w", ErrInstallFailed, name, err)
		}
	}

	l.states[name] = pluginLoaded
	l.logger.Info("plugin loaded",
		slog.String("plugin", name),
		slog.String("version", p.Version()),
	)
	return nil
}

// subscribeHooks wires implemented lifecycle hooks to the server's bus.
// Each hook is wrapped so it receives the live server, not plugin state
// captured at subscription time.
func (l *PluginLoader) subscribeHooks(p Plugin) {
	if h, ok := p.(BeforeStarter); ok {
		l.server.On(EventBeforeStart, func(ctx context.Context, _ Event) error {
			return h.BeforeStart(ctx, l.server)
		})
	}
	if h, ok := p.(AfterStarter); ok {
		l.server.On(EventAfterStart, func(ctx context.Context, _ Event) error {
			return h.AfterStart(ctx, l.server)
		})
	}
	if h, ok := p.(BeforeStopper); ok {
		l.server.On(EventBeforeStop, func(ctx context.Context, _ Event) error {
			return h.BeforeStop(ctx, l.server)
		})
	}
}
