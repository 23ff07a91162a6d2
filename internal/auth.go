package internal

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AuthRequirement is a symbolic access-control requirement attached to a
// route: either a named capability or a set of acceptable roles.
type AuthRequirement interface {
	authRequirement()
}

// Capability names a configured auth handler (e.g. "jwt", "session").
type Capability string

func (Capability) authRequirement() {}

// Roles is an auth requirement expressed as acceptable role strings.
// Resolution delegates to the configured role handler factory.
type Roles []string

func (Roles) authRequirement() {}

// RoleHandlerFunc turns a role set into a concrete auth middleware.
type RoleHandlerFunc func(roles []string) MiddlewareFunc

// FallbackHandlerFunc turns an unrecognized capability name into a concrete
// auth middleware. Absence means an unknown capability is a hard
// configuration error.
type FallbackHandlerFunc func(capability string) MiddlewareFunc

// AuthConfig maps symbolic auth requirements to concrete middleware.
// Resolution is pure given the current configuration: there is no caching,
// so mutations via SetHandler/RemoveHandler are visible immediately.
type AuthConfig struct {
	mu       sync.RWMutex
	handlers map[string]MiddlewareFunc
	role     RoleHandlerFunc
	fallback FallbackHandlerFunc
}

// AuthOption configures an AuthConfig.
type AuthOption func(*AuthConfig)

// WithAuthHandler maps a capability name to a middleware.
func WithAuthHandler(name string, mw MiddlewareFunc) AuthOption {
	return func(a *AuthConfig) {
		a.handlers[name] = mw
	}
}

// WithRoleHandler sets the factory used for role-set requirements.
func WithRoleHandler(fn RoleHandlerFunc) AuthOption {
	return func(a *AuthConfig) {
		a.role = fn
	}
}

// WithAuthFallback sets the factory used for capability names that have no
// configured handler.
func WithAuthFallback(fn FallbackHandlerFunc) AuthOption {
	return func(a *AuthConfig) {
		a.fallback = fn
	}
}

// NewAuthConfig creates an auth configuration.
func NewAuthConfig(opts ...AuthOption) *AuthConfig {
	a := &AuthConfig{handlers: make(map[string]MiddlewareFunc)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetHandler adds or replaces a capability handler after construction.
func (a *AuthConfig) SetHandler(name string, mw MiddlewareFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[name] = mw
}

// RemoveHandler removes a capability handler. Removing an unknown name is a
// no-op.
func (a *AuthConfig) RemoveHandler(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.handlers, name)
}

// Resolve maps a requirement to a concrete middleware.
//
//   - Roles: requires a configured role handler; fails otherwise.
//   - Capability: looks up the configured handlers; falls back to the
//     fallback factory if configured; otherwise fails with an error listing
//     the configured capability names for debuggability.
func (a *AuthConfig) Resolve(req AuthRequirement) (MiddlewareFunc, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	switch req := req.(type) {
	case Roles:
		if a.role == nil {
			return nil, ErrNoRoleHandler
		}
		return a.role(req), nil
	case Capability:
		if mw, ok := a.handlers[string(req)]; ok {
			return mw, nil
		}
		if a.fallback != nil {
			return a.fallback(string(req)), nil
		}
		return nil, fmt.Errorf("%w: %q (configured: %s)", ErrUnknownCapability, string(req), a.configuredNames())
	case nil:
		return nil, ErrNilAuthRequirement
	default:
		return nil, fmt.Errorf("%w: %T", ErrNilAuthRequirement, req)
	}
}

// configuredNames returns the sorted capability names for error messages.
// Callers must hold at least a read lock.
func (a *AuthConfig) configuredNames() string {
	if len(a.handlers) == 0 {
		return "none"
	}
	names := make([]string, 0, len(a.handlers))
	for name := range a.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
