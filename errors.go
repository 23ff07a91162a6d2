package anvil

import "github.com/dmitrymomot/anvil/internal"

// Middleware errors.
var (
	ErrNilMiddleware       = internal.ErrNilMiddleware
	ErrEmptyMiddlewareName = internal.ErrEmptyMiddlewareName
	ErrDuplicateMiddleware = internal.ErrDuplicateMiddleware
	ErrUnknownMiddleware   = internal.ErrUnknownMiddleware
	ErrInvalidCategory     = internal.ErrInvalidCategory
	ErrNoHandler           = internal.ErrNoHandler
	ErrAmbiguousHandler    = internal.ErrAmbiguousHandler
	ErrUnknownDependency   = internal.ErrUnknownDependency
	ErrCyclicDependency    = internal.ErrCyclicDependency
)

// Auth errors.
var (
	ErrNoRoleHandler      = internal.ErrNoRoleHandler
	ErrUnknownCapability  = internal.ErrUnknownCapability
	ErrNilAuthRequirement = internal.ErrNilAuthRequirement
)

// Plugin errors.
var (
	ErrNilPlugin                 = internal.ErrNilPlugin
	ErrEmptyPluginName           = internal.ErrEmptyPluginName
	ErrDuplicatePlugin           = internal.ErrDuplicatePlugin
	ErrUnknownPluginDependency   = internal.ErrUnknownPluginDependency
	ErrPluginDependencyCycle     = internal.ErrPluginDependencyCycle
	ErrRequiredMiddlewareMissing = internal.ErrRequiredMiddlewareMissing
	ErrInstallFailed             = internal.ErrInstallFailed
)

// Route and server errors.
var (
	ErrInvalidMethod        = internal.ErrInvalidMethod
	ErrEmptyRoutePath       = internal.ErrEmptyRoutePath
	ErrNoRouteHandler       = internal.ErrNoRouteHandler
	ErrServerAlreadyRunning = internal.ErrServerAlreadyRunning
	ErrServerNotRunning     = internal.ErrServerNotRunning
)
