package db

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Adapter is the PostgreSQL implementation of adapter.Adapter. The pool is
// created on Connect and torn down on Disconnect; Pool is only valid in
// between.
type Adapter struct {
	name string
	cfg  Config

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// NewAdapter creates a named PostgreSQL adapter. The name defaults to
// "postgres" and only matters when several adapters coexist in a manager.
func NewAdapter(name string, cfg Config) *Adapter {
	if name == "" {
		name = "postgres"
	}
	return &Adapter{name: name, cfg: cfg}
}

// Name implements adapter.Adapter.
func (a *Adapter) Name() string { return a.name }

// Connect implements adapter.Adapter.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pool != nil {
		return ErrAlreadyConnected
	}
	pool, err := Connect(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.pool = pool
	return nil
}

// Disconnect implements adapter.Adapter. Disconnecting a disconnected
// adapter is a no-op.
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

// IsConnected implements adapter.Adapter.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pool != nil
}

// Healthcheck implements adapter.Adapter.
func (a *Adapter) Healthcheck(ctx context.Context) error {
	a.mu.RLock()
	pool := a.pool
	a.mu.RUnlock()

	if pool == nil {
		return ErrNotConnected
	}
	return Healthcheck(pool)(ctx)
}

// Pool returns the live connection pool, or ErrNotConnected before Connect.
func (a *Adapter) Pool() (*pgxpool.Pool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.pool == nil {
		return nil, ErrNotConnected
	}
	return a.pool, nil
}
