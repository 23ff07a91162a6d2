// Package jobs provides a background job plugin backed by River over
// Postgres. Tasks register a typed handler, callers enqueue payloads,
// and workers process them inside the server lifecycle.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/dmitrymomot/anvil/internal"
	"github.com/dmitrymomot/anvil/pkg/db"
)

// Plugin errors.
var (
	ErrPoolRequired   = errors.New("jobs: postgres pool required")
	ErrDuplicateTask  = errors.New("jobs: duplicate task name")
	ErrUnknownTask    = errors.New("jobs: unknown task")
	ErrInvalidPayload = errors.New("jobs: invalid payload")
	ErrNotStarted     = errors.New("jobs: not started")
)

const defaultMaxWorkers = 100

// Plugin wires River job processing into the server.
type Plugin struct {
	pool        *pgxpool.Pool
	adapterName string
	maxWorkers  int
	logger      *slog.Logger

	registry *taskRegistry

	mu     sync.Mutex
	client *river.Client[pgx.Tx]
}

// Option configures the Plugin.
type Option func(*Plugin)

// WithPool supplies the Postgres pool directly.
func WithPool(pool *pgxpool.Pool) Option {
	return func(p *Plugin) {
		p.pool = pool
	}
}

// WithAdapterName resolves the pool from the named server adapter at
// install time. Defaults to "postgres" when no pool is supplied.
func WithAdapterName(name string) Option {
	return func(p *Plugin) {
		p.adapterName = name
	}
}

// WithMaxWorkers caps concurrent job execution on the default queue.
func WithMaxWorkers(n int) Option {
	return func(p *Plugin) {
		p.maxWorkers = n
	}
}

// WithLogger sets the logger passed to River and task dispatch.
func WithLogger(log *slog.Logger) Option {
	return func(p *Plugin) {
		p.logger = log
	}
}

// New creates the jobs plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		adapterName: "postgres",
		maxWorkers:  defaultMaxWorkers,
		registry:    newTaskRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Name implements internal.Plugin.
func (p *Plugin) Name() string { return "jobs" }

// Version implements internal.Plugin.
func (p *Plugin) Version() string { return "1.0.0" }

// Register binds a named task to the plugin before it loads.
func Register[P any](p *Plugin, name string, handler func(ctx context.Context, payload P) error) error {
	return p.registry.register(name, &typedExecutor[P]{handler: handler})
}

// Install implements internal.Installer. Without an explicit pool it
// only verifies the named adapter exists; the adapter connects during
// Start, so the River client is built in AfterStart.
func (p *Plugin) Install(_ context.Context, s *internal.Server) error {
	if p.pool != nil {
		return nil
	}
	a, err := s.Adapters().Get(p.adapterName)
	if err != nil {
		return errors.Join(ErrPoolRequired, err)
	}
	if _, ok := a.(*db.Adapter); !ok {
		return fmt.Errorf("%w: adapter %q is not a postgres adapter", ErrPoolRequired, p.adapterName)
	}
	return nil
}

// AfterStart implements internal.AfterStarter. The adapter pool is live
// by now, so the client is built here and workers begin pulling jobs.
func (p *Plugin) AfterStart(ctx context.Context, s *internal.Server) error {
	if p.pool == nil {
		a, err := s.Adapters().Get(p.adapterName)
		if err != nil {
			return errors.Join(ErrPoolRequired, err)
		}
		dba, ok := a.(*db.Adapter)
		if !ok {
			return fmt.Errorf("%w: adapter %q is not a postgres adapter", ErrPoolRequired, p.adapterName)
		}
		pool, err := dba.Pool()
		if err != nil {
			return errors.Join(ErrPoolRequired, err)
		}
		p.pool = pool
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &taskWorker{registry: p.registry, logger: p.logger})

	client, err := river.NewClient(riverpgxv5.New(p.pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: p.maxWorkers},
		},
		Workers: workers,
		Logger:  p.logger,
	})
	if err != nil {
		return fmt.Errorf("jobs: create client: %w", err)
	}
	if err := client.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("jobs: start client: %w", err)
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "job workers started", "tasks", len(p.registry.names()))
	return nil
}

// BeforeStop implements internal.BeforeStopper. In-flight jobs get to
// finish within the shutdown deadline.
func (p *Plugin) BeforeStop(ctx context.Context, _ *internal.Server) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Stop(ctx)
}

// Enqueue inserts a task for background processing.
func (p *Plugin) Enqueue(ctx context.Context, task string, payload any) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil {
		return ErrNotStarted
	}
	if _, ok := p.registry.get(task); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Join(ErrInvalidPayload, err)
		}
		raw = data
	}

	_, err := client.Insert(ctx, taskArgs{TaskName: task, Payload: raw}, nil)
	return err
}
