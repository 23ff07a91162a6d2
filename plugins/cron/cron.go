// Package cron provides a scheduled-task plugin backed by robfig/cron.
// Jobs run in-process on the standard cron spec syntax, starting when
// the server comes online and stopping before it shuts down.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/anvil/internal"
)

// Plugin errors.
var (
	ErrDuplicateJob    = errors.New("cron: duplicate job name")
	ErrInvalidSchedule = errors.New("cron: invalid schedule")
)

// Job is a named cron entry.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Plugin schedules background jobs alongside the server lifecycle.
type Plugin struct {
	logger *slog.Logger

	mu      sync.Mutex
	jobs    []Job
	names   map[string]struct{}
	runner  *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Option configures the Plugin.
type Option func(*Plugin)

// WithLogger sets the logger for job failures.
func WithLogger(log *slog.Logger) Option {
	return func(p *Plugin) {
		p.logger = log
	}
}

// New creates the cron plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{names: make(map[string]struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Name implements internal.Plugin.
func (p *Plugin) Name() string { return "cron" }

// Version implements internal.Plugin.
func (p *Plugin) Version() string { return "1.0.0" }

// Add registers a job. The schedule is validated immediately so a typo
// surfaces at wiring time rather than at server start.
func (p *Plugin) Add(name, schedule string, run func(ctx context.Context) error) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, schedule, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.names[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateJob, name)
	}
	p.names[name] = struct{}{}
	p.jobs = append(p.jobs, Job{Name: name, Schedule: schedule, Run: run})
	return nil
}

// Jobs returns the registered jobs in registration order.
func (p *Plugin) Jobs() []Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Job(nil), p.jobs...)
}

// AfterStart implements internal.AfterStarter. It builds the runner and
// begins dispatching jobs.
func (p *Plugin) AfterStart(ctx context.Context, _ *internal.Server) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runner != nil {
		return nil
	}

	p.baseCtx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	runner := cron.New(cron.WithChain(
		cron.Recover(cronLogger{p.logger}),
	))

	for _, job := range p.jobs {
		if _, err := runner.AddFunc(job.Schedule, p.wrap(job)); err != nil {
			p.cancel()
			p.baseCtx, p.cancel = nil, nil
			return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, job.Schedule, err)
		}
	}

	runner.Start()
	p.runner = runner
	p.logger.InfoContext(ctx, "cron started", "jobs", len(p.jobs))
	return nil
}

// BeforeStop implements internal.BeforeStopper. It stops scheduling and
// waits for running jobs to finish, bounded by ctx.
func (p *Plugin) BeforeStop(ctx context.Context, _ *internal.Server) error {
	p.mu.Lock()
	runner := p.runner
	cancel := p.cancel
	p.runner, p.baseCtx, p.cancel = nil, nil, nil
	p.mu.Unlock()

	if runner == nil {
		return nil
	}
	defer cancel()

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Plugin) wrap(job Job) func() {
	return func() {
		p.mu.Lock()
		ctx := p.baseCtx
		p.mu.Unlock()
		if ctx == nil {
			return
		}

		if err := job.Run(ctx); err != nil {
			p.logger.ErrorContext(ctx, "cron job failed", "job", job.Name, "error", err)
		}
	}
}

// cronLogger adapts slog to the cron.Logger interface for the Recover
// chain wrapper.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
