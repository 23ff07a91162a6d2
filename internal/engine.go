package internal

import (
	"fmt"
	"log/slog"
)

// Mounter is the underlying application surface the engine applies
// descriptors to: a standard middleware chain and an error-handling chain.
// Application is append-only; a mounted handler cannot be un-mounted
// without rebuilding the application.
type Mounter interface {
	Mount(mw MiddlewareFunc)
	MountError(eh ErrorHandlerFunc)
}

// Engine applies ordered, category-filtered middleware descriptors to a
// Mounter. ApplyCategory is not idempotent: re-invocation re-applies, which
// is a caller error the engine does not guard against.
type Engine struct {
	registry *MiddlewareRegistry
	target   Mounter
	logger   *slog.Logger
}

// NewEngine creates an application engine over a registry and a target.
func NewEngine(registry *MiddlewareRegistry, target Mounter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = discardLogger()
	}
	return &Engine{registry: registry, target: target, logger: logger}
}

// Order returns the current full application order across all categories.
// The order is re-derived from live registry state on every call, so
// enable/disable toggles between calls are reflected.
func (e *Engine) Order() ([]*Middleware, error) {
	return orderMiddlewares(e.registry.snapshot())
}

// ApplyCategory mounts every enabled descriptor of the category, in the
// order derived from the full registry. Descriptors carrying an error
// handler go to the error chain; the rest go to the request chain.
//
// A failure during mounting is returned naming the broken descriptor, and
// nothing after it is applied. Descriptors mounted before the failure stay
// mounted.
func (e *Engine) ApplyCategory(cat Category) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, cat)
	}

	ordered, err := e.Order()
	if err != nil {
		return err
	}

	for _, m := range ordered {
		if m.Category != cat {
			continue
		}
		if err := e.mount(m); err != nil {
			e.logger.Error("middleware application failed",
				slog.String("middleware", m.Name),
				slog.String("category", string(cat)),
				slog.Any("error", err),
			)
			return err
		}
		e.logger.Debug("middleware applied",
			slog.String("middleware", m.Name),
			slog.String("category", string(cat)),
			slog.Int("priority", m.Priority),
		)
	}
	return nil
}

// ApplyAll applies every category in the canonical phase order.
func (e *Engine) ApplyAll() error {
	for _, cat := range Phases {
		if err := e.ApplyCategory(cat); err != nil {
			return err
		}
	}
	return nil
}

// mount applies a single descriptor, converting a panicking mount into an
// error naming it.
func (e *Engine) mount(m *Middleware) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("middleware %q: mount panicked: %v", m.Name, rec)
		}
	}()

	if m.IsErrorHandler() {
		e.target.MountError(m.ErrorHandler)
	} else {
		e.target.Mount(m.Handler)
	}
	return nil
}
