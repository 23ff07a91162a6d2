package internal

import "context"

// Plugin is a unit of optional server extension. The base interface is
// identity only; everything else is an optional capability detected by type
// assertion at load time.
type Plugin interface {
	Name() string
	Version() string
}

// PluginDependent declares other plugins that must be loaded first.
type PluginDependent interface {
	Dependencies() []string
}

// MiddlewareRequirer declares middleware descriptors that must already be
// registered (not necessarily applied) before the plugin loads.
type MiddlewareRequirer interface {
	RequiredMiddleware() []string
}

// MiddlewareProvider contributes middleware descriptors at load time. The
// returned descriptors are registered, not applied; they run once their
// category's application phase executes.
type MiddlewareProvider interface {
	Middlewares() []*Middleware
}

// RouteProvider contributes routes grouped by prefix. Routes within a
// prefix are registered in slice order.
type RouteProvider interface {
	Routes() map[string][]Route
}

// EventSubscriber contributes event handlers keyed by event name. Handlers
// are subscribed to the server's bus and invoked with the server's context,
// never with plugin-private state.
type EventSubscriber interface {
	Events() map[string]EventHandler
}

// Installer runs once when the plugin loads, after its middleware, routes
// and event handlers are registered. An install error propagates to the
// Use caller and leaves those registrations in place (see Loader).
//
// Install runs under the loader's lock and must not call Use or Register
// on the same loader; plugins that need other plugins declare them via
// PluginDependent and let the loader sequence installation.
type Installer interface {
	Install(ctx context.Context, s *Server) error
}

// Uninstaller runs when the plugin is explicitly uninstalled.
type Uninstaller interface {
	Uninstall(ctx context.Context, s *Server) error
}

// Lifecycle hook capabilities. The loader subscribes each implemented hook
// to the matching lifecycle event, so hooks run inside the sequential
// EmitContext dispatch with the other handlers.
type (
	// BeforeStarter runs before the listener binds.
	BeforeStarter interface {
		BeforeStart(ctx context.Context, s *Server) error
	}

	// AfterStarter runs once the server is accepting connections.
	AfterStarter interface {
		AfterStart(ctx context.Context, s *Server) error
	}

	// BeforeStopper runs at the start of the shutdown sequence, before the
	// listener closes.
	BeforeStopper interface {
		BeforeStop(ctx context.Context, s *Server) error
	}
)

// pluginState tracks a plugin through the loader's state machine.
type pluginState int

const (
	pluginUnregistered pluginState = iota
	pluginLoading
	pluginLoaded
)
