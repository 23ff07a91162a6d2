package adapter

import (
	"context"
	"fmt"
	"sync"
)

// MatchFunc reports whether an entity satisfies a filter. Used by the
// in-memory repository, which has no query language of its own.
type MatchFunc[T any] func(entity T, filter Filter) bool

// MemoryRepository is a map-backed Repository implementation. It is meant
// for tests and prototypes; production code plugs in a database-backed
// implementation behind the same interface.
type MemoryRepository[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
	match MatchFunc[T]
}

// NewMemoryRepository creates an in-memory repository. A nil match function
// makes every entity satisfy every filter.
func NewMemoryRepository[T any](match MatchFunc[T]) *MemoryRepository[T] {
	if match == nil {
		match = func(T, Filter) bool { return true }
	}
	return &MemoryRepository[T]{
		items: make(map[string]T),
		match: match,
	}
}

func (r *MemoryRepository[T]) FindByID(_ context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return item, nil
}

func (r *MemoryRepository[T]) FindOne(_ context.Context, filter Filter) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if r.match(r.items[id], filter) {
			return r.items[id], nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

func (r *MemoryRepository[T]) FindMany(_ context.Context, filter Filter) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []T
	for _, id := range r.order {
		if r.match(r.items[id], filter) {
			out = append(out, r.items[id])
		}
	}
	return out, nil
}

func (r *MemoryRepository[T]) Create(_ context.Context, id string, entity T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; exists {
		return fmt.Errorf("repository: duplicate id %q", id)
	}
	r.items[id] = entity
	r.order = append(r.order, id)
	return nil
}

func (r *MemoryRepository[T]) Update(_ context.Context, id string, entity T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	r.items[id] = entity
	return nil
}

func (r *MemoryRepository[T]) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepository[T]) Count(_ context.Context, filter Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, id := range r.order {
		if r.match(r.items[id], filter) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository[T]) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[id]
	return ok, nil
}
