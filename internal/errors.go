package internal

import "errors"

// Configuration errors, surfaced synchronously at registration or
// resolution time.
var (
	ErrNilMiddleware       = errors.New("middleware: nil descriptor")
	ErrEmptyMiddlewareName = errors.New("middleware: empty name")
	ErrDuplicateMiddleware = errors.New("middleware: duplicate name")
	ErrUnknownMiddleware   = errors.New("middleware: unknown name")
	ErrInvalidCategory     = errors.New("middleware: invalid category")
	ErrNoHandler           = errors.New("middleware: no handler")
	ErrAmbiguousHandler    = errors.New("middleware: both standard and error handlers set")
	ErrUnknownDependency   = errors.New("middleware: unknown dependency")
	ErrCyclicDependency    = errors.New("middleware: cyclic dependency")

	ErrNoRoleHandler      = errors.New("auth: role-based auth requested but no role handler configured")
	ErrUnknownCapability  = errors.New("auth: unknown capability")
	ErrNilAuthRequirement = errors.New("auth: invalid requirement")
)

// Plugin errors, surfaced during registration or load.
var (
	ErrNilPlugin                 = errors.New("plugin: nil plugin")
	ErrEmptyPluginName           = errors.New("plugin: empty name")
	ErrDuplicatePlugin           = errors.New("plugin: already registered")
	ErrUnknownPluginDependency   = errors.New("plugin: unknown dependency")
	ErrPluginDependencyCycle     = errors.New("plugin: dependency cycle")
	ErrRequiredMiddlewareMissing = errors.New("plugin: required middleware missing")
	ErrInstallFailed             = errors.New("plugin: install hook failed")
)

// Route errors.
var (
	ErrInvalidMethod  = errors.New("route: invalid HTTP method")
	ErrEmptyRoutePath = errors.New("route: empty path")
	ErrNoRouteHandler = errors.New("route: no handler")
)

// Lifecycle errors.
var (
	ErrServerAlreadyRunning = errors.New("server: already running")
	ErrServerNotRunning     = errors.New("server: not running")
)
