package adapter

import (
	"context"
	"errors"
)

// Repository errors.
var (
	ErrNotFound = errors.New("repository: not found")
)

// Filter narrows a repository query. Interpretation is driver-specific;
// the in-memory implementation matches on exported field equality.
type Filter map[string]any

// Repository is an optional CRUD-style data-access interface consumed by
// user route handlers and plugins, never by the server core.
type Repository[T any] interface {
	FindByID(ctx context.Context, id string) (T, error)
	FindOne(ctx context.Context, filter Filter) (T, error)
	FindMany(ctx context.Context, filter Filter) ([]T, error)
	Create(ctx context.Context, id string, entity T) error
	Update(ctx context.Context, id string, entity T) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, filter Filter) (int64, error)
	Exists(ctx context.Context, id string) (bool, error)
}
