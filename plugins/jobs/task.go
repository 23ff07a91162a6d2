package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/riverqueue/river"
)

// taskArgs is the single River job shape used for all tasks. The task
// name routes execution to the right registered handler.
type taskArgs struct {
	TaskName string          `json:"task_name"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Kind implements river.JobArgs.
func (taskArgs) Kind() string { return "anvil_task" }

// taskExecutor is the type-erased execution interface so tasks with
// different payload types share one registry.
type taskExecutor interface {
	Execute(ctx context.Context, payload json.RawMessage) error
}

type taskRegistry struct {
	mu        sync.RWMutex
	executors map[string]taskExecutor
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{executors: make(map[string]taskExecutor)}
}

func (r *taskRegistry) register(name string, executor taskExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, name)
	}
	r.executors[name] = executor
	return nil
}

func (r *taskRegistry) get(name string) (taskExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.executors[name]
	return executor, ok
}

func (r *taskRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.executors))
}

// typedExecutor adapts a typed handler for type-erased storage.
type typedExecutor[P any] struct {
	handler func(ctx context.Context, payload P) error
}

func (e *typedExecutor[P]) Execute(ctx context.Context, raw json.RawMessage) error {
	var payload P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errors.Join(ErrInvalidPayload, err)
		}
	}
	return e.handler(ctx, payload)
}

// taskWorker dispatches River jobs to registered executors.
type taskWorker struct {
	river.WorkerDefaults[taskArgs]
	registry *taskRegistry
	logger   *slog.Logger
}

func (w *taskWorker) Work(ctx context.Context, job *river.Job[taskArgs]) error {
	executor, ok := w.registry.get(job.Args.TaskName)
	if !ok {
		// Unknown tasks are terminal, retrying will not help.
		w.logger.ErrorContext(ctx, "unknown task", "task", job.Args.TaskName)
		return river.JobCancel(fmt.Errorf("%w: %q", ErrUnknownTask, job.Args.TaskName))
	}
	return executor.Execute(ctx, job.Args.Payload)
}
