package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Adapter is a swappable, database-agnostic data-access connection. The
// server only calls Connect and Disconnect around start and stop;
// everything else is for user code.
type Adapter interface {
	// Name identifies the adapter within a manager.
	Name() string

	// Connect establishes the underlying connection. Calling Connect on an
	// already connected adapter is an error.
	Connect(ctx context.Context) error

	// Disconnect closes the underlying connection. Disconnecting a
	// disconnected adapter is a no-op.
	Disconnect(ctx context.Context) error

	// IsConnected reports the current connection state.
	IsConnected() bool

	// Healthcheck verifies the connection is alive.
	Healthcheck(ctx context.Context) error
}

// Manager errors.
var (
	ErrDuplicateAdapter = errors.New("adapter: duplicate name")
	ErrUnknownAdapter   = errors.New("adapter: unknown name")
)

// Manager holds named adapters and drives their lifecycle as a unit.
type Manager struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewManager creates an empty adapter manager.
func NewManager() *Manager {
	return &Manager{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Duplicate names are a hard error.
func (m *Manager) Register(a Adapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.adapters[a.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAdapter, a.Name())
	}
	m.adapters[a.Name()] = a
	m.order = append(m.order, a.Name())
	return nil
}

// Get returns the adapter with the given name.
func (m *Manager) Get(name string) (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, name)
	}
	return a, nil
}

// Len returns the number of registered adapters.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.adapters)
}

// ConnectAll connects every registered adapter in parallel. The first
// failure cancels the remaining attempts and is returned.
func (m *Manager) ConnectAll(ctx context.Context) error {
	m.mu.RLock()
	adapters := m.snapshot()
	m.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		g.Go(func() error {
			if err := a.Connect(ctx); err != nil {
				return fmt.Errorf("adapter %q: %w", a.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// DisconnectAll disconnects every adapter in reverse registration order.
// Disconnection is best-effort: every adapter gets a chance, and the
// collected errors are joined.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	m.mu.RLock()
	adapters := m.snapshot()
	m.mu.RUnlock()

	var errs []error
	for i := len(adapters) - 1; i >= 0; i-- {
		if err := adapters[i].Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("adapter %q: %w", adapters[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Healthchecks returns a named healthcheck closure per adapter, compatible
// with the health package's CheckFunc signature.
func (m *Manager) Healthchecks() map[string]func(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checks := make(map[string]func(ctx context.Context) error, len(m.adapters))
	for name, a := range m.adapters {
		checks[name] = a.Healthcheck
	}
	return checks
}

// snapshot returns adapters in registration order. Callers must hold at
// least a read lock.
func (m *Manager) snapshot() []Adapter {
	out := make([]Adapter, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.adapters[name])
	}
	return out
}
