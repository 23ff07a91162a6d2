package internal

import (
	"fmt"
	"sync"
)

// MiddlewareRegistry holds middleware descriptors keyed by name and preserves
// registration order for stable sorting. All validation happens at
// registration time: ordering never fails on malformed input because
// malformed input never enters the registry.
//
// The registry is safe for concurrent use. Registration after the server
// starts serving is permitted but discouraged; there is no "closed for
// registration" phase.
type MiddlewareRegistry struct {
	mu     sync.RWMutex
	byName map[string]*Middleware
	order  []string
}

// NewMiddlewareRegistry creates an empty registry.
func NewMiddlewareRegistry() *MiddlewareRegistry {
	return &MiddlewareRegistry{
		byName: make(map[string]*Middleware),
	}
}

// Register validates and stores a descriptor. It fails on an empty name, a
// duplicate name, a missing handler, an unknown category, or a dependency
// that has not been registered yet (fail fast, not lazily at ordering time).
func (r *MiddlewareRegistry) Register(m *Middleware) error {
	if err := m.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[m.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateMiddleware, m.Name)
	}
	for _, dep := range m.Dependencies {
		if _, ok := r.byName[dep]; !ok {
			return fmt.Errorf("%w: middleware %q depends on %q", ErrUnknownDependency, m.Name, dep)
		}
	}

	r.byName[m.Name] = m.clone()
	r.order = append(r.order, m.Name)
	return nil
}

// RegisterAll registers descriptors in order, stopping at the first failure.
func (r *MiddlewareRegistry) RegisterAll(ms ...*Middleware) error {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a descriptor with the given name is registered.
// Presence says nothing about whether the descriptor has been applied.
func (r *MiddlewareRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Get returns the stored descriptor with the given name, or nil. The
// registry clones on Register to defend against the caller's copy, not
// this one: Get hands out the live descriptor so advanced setups can
// retune priorities or dependencies between applications. The ordering
// engine revalidates dependencies on every Order call, so such edits are
// caught there (including introduced cycles) rather than going stale.
func (r *MiddlewareRegistry) Get(name string) *Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Enable re-includes a descriptor in ordering and application.
func (r *MiddlewareRegistry) Enable(name string) error {
	return r.setDisabled(name, false)
}

// Disable excludes a descriptor from ordering and application. Already
// applied handlers are unaffected: there is no removal operation on the
// underlying router.
func (r *MiddlewareRegistry) Disable(name string) error {
	return r.setDisabled(name, true)
}

func (r *MiddlewareRegistry) setDisabled(name string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMiddleware, name)
	}
	m.Disabled = disabled
	return nil
}

// Len returns the number of registered descriptors, enabled or not.
func (r *MiddlewareRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Names returns all registered names in registration order.
func (r *MiddlewareRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// snapshot returns enabled descriptors in registration order. The returned
// slice is owned by the caller; the descriptors are shared.
func (r *MiddlewareRegistry) snapshot() []*Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Middleware, 0, len(r.order))
	for _, name := range r.order {
		m := r.byName[name]
		if !m.Disabled {
			out = append(out, m)
		}
	}
	return out
}
