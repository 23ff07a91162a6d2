package internal_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/anvil/internal"
)

func noopHandler() internal.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return next
	}
}

func noopErrorHandler() internal.ErrorHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, err error) error {
		return nil
	}
}

func TestMiddlewareRegistryRegister(t *testing.T) {
	t.Parallel()

	t.Run("valid descriptor", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()

		err := reg.Register(&internal.Middleware{
			Name:     "helmet",
			Category: internal.CategorySecurity,
			Priority: 100,
			Handler:  noopHandler(),
		})
		require.NoError(t, err)
		require.True(t, reg.Has("helmet"))
		require.Equal(t, 1, reg.Len())
	})

	t.Run("nil descriptor", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		require.ErrorIs(t, reg.Register(nil), internal.ErrNilMiddleware)
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		err := reg.Register(&internal.Middleware{
			Category: internal.CategorySecurity,
			Handler:  noopHandler(),
		})
		require.ErrorIs(t, err, internal.ErrEmptyMiddlewareName)
	})

	t.Run("invalid category", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		err := reg.Register(&internal.Middleware{
			Name:     "bad",
			Category: internal.Category("bogus"),
			Handler:  noopHandler(),
		})
		require.ErrorIs(t, err, internal.ErrInvalidCategory)
	})

	t.Run("no handler", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		err := reg.Register(&internal.Middleware{
			Name:     "empty",
			Category: internal.CategoryCustom,
		})
		require.ErrorIs(t, err, internal.ErrNoHandler)
	})

	t.Run("ambiguous handler", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		err := reg.Register(&internal.Middleware{
			Name:         "both",
			Category:     internal.CategoryCustom,
			Handler:      noopHandler(),
			ErrorHandler: noopErrorHandler(),
		})
		require.ErrorIs(t, err, internal.ErrAmbiguousHandler)
	})

	t.Run("duplicate name", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		m := &internal.Middleware{
			Name:     "dup",
			Category: internal.CategoryCustom,
			Handler:  noopHandler(),
		}
		require.NoError(t, reg.Register(m))
		require.ErrorIs(t, reg.Register(m), internal.ErrDuplicateMiddleware)
	})

	t.Run("unknown dependency", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		err := reg.Register(&internal.Middleware{
			Name:         "dependent",
			Category:     internal.CategoryCustom,
			Dependencies: []string{"ghost"},
			Handler:      noopHandler(),
		})
		require.ErrorIs(t, err, internal.ErrUnknownDependency)
	})

	t.Run("dependency registered first succeeds", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		require.NoError(t, reg.Register(&internal.Middleware{
			Name:     "base",
			Category: internal.CategoryCustom,
			Handler:  noopHandler(),
		}))
		require.NoError(t, reg.Register(&internal.Middleware{
			Name:         "dependent",
			Category:     internal.CategoryCustom,
			Dependencies: []string{"base"},
			Handler:      noopHandler(),
		}))
	})
}

func TestMiddlewareRegistryEnableDisable(t *testing.T) {
	t.Parallel()

	t.Run("disable and enable", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		require.NoError(t, reg.Register(&internal.Middleware{
			Name:     "toggle",
			Category: internal.CategoryCustom,
			Handler:  noopHandler(),
		}))

		require.NoError(t, reg.Disable("toggle"))
		require.True(t, reg.Get("toggle").Disabled)

		require.NoError(t, reg.Enable("toggle"))
		require.False(t, reg.Get("toggle").Disabled)
	})

	t.Run("unknown name", func(t *testing.T) {
		t.Parallel()
		reg := internal.NewMiddlewareRegistry()
		require.ErrorIs(t, reg.Disable("ghost"), internal.ErrUnknownMiddleware)
		require.ErrorIs(t, reg.Enable("ghost"), internal.ErrUnknownMiddleware)
	})
}

func TestMiddlewareRegistryNames(t *testing.T) {
	t.Parallel()

	reg := internal.NewMiddlewareRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Register(&internal.Middleware{
			Name:     name,
			Category: internal.CategoryCustom,
			Handler:  noopHandler(),
		}))
	}

	// Registration order, not alphabetical.
	require.Equal(t, []string{"c", "a", "b"}, reg.Names())
}

func TestMiddlewareRegistryClonesDescriptors(t *testing.T) {
	t.Parallel()

	reg := internal.NewMiddlewareRegistry()
	require.NoError(t, reg.Register(&internal.Middleware{
		Name:     "base",
		Category: internal.CategoryCustom,
		Handler:  noopHandler(),
	}))

	deps := []string{"base"}
	m := &internal.Middleware{
		Name:         "dependent",
		Category:     internal.CategoryCustom,
		Dependencies: deps,
		Handler:      noopHandler(),
	}
	require.NoError(t, reg.Register(m))

	// Mutating the caller's slice must not affect the stored descriptor.
	deps[0] = "mutated"
	require.Equal(t, []string{"base"}, reg.Get("dependent").Dependencies)
}

func TestMiddlewareRegistryGetReturnsLiveDescriptor(t *testing.T) {
	t.Parallel()

	reg := internal.NewMiddlewareRegistry()
	require.NoError(t, reg.Register(&internal.Middleware{
		Name:     "tunable",
		Category: internal.CategoryCustom,
		Priority: 10,
		Handler:  noopHandler(),
	}))

	// Get exposes the stored descriptor itself, so edits through it are
	// visible to subsequent lookups and to the ordering engine.
	require.Same(t, reg.Get("tunable"), reg.Get("tunable"))
	reg.Get("tunable").Priority = 99
	require.Equal(t, 99, reg.Get("tunable").Priority)
}
