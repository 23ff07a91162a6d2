package internal

import (
	"fmt"
	"net/http"
)

// Category is the coarse phase bucket a middleware descriptor belongs to.
// Categories are applied in a fixed phase order during startup; priorities
// order descriptors within a category.
type Category string

// Middleware categories, listed in phase application order.
const (
	CategorySecurity    Category = "security"
	CategoryParser      Category = "parser"
	CategorySession     Category = "session"
	CategoryLogging     Category = "logging"
	CategoryCompression Category = "compression"
	CategoryStatic      Category = "static"
	CategoryCustom      Category = "custom"
)

// Phases is the canonical category application order.
var Phases = []Category{
	CategorySecurity,
	CategoryParser,
	CategorySession,
	CategoryLogging,
	CategoryCompression,
	CategoryStatic,
	CategoryCustom,
}

// Valid reports whether the category is one of the fixed set.
func (c Category) Valid() bool {
	switch c {
	case CategorySecurity, CategoryParser, CategorySession, CategoryLogging,
		CategoryCompression, CategoryStatic, CategoryCustom:
		return true
	}
	return false
}

// MiddlewareFunc is a standard middleware: it wraps the next handler in the
// chain. This matches the underlying router's middleware signature.
type MiddlewareFunc func(next http.Handler) http.Handler

// ErrorHandlerFunc handles an error produced by a route handler. Returning
// nil means the error was handled and the chain stops; returning an error
// (usually the same one) passes it to the next error handler in the chain.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error) error

// Middleware is a named, attribute-tagged registration record. It is created
// at registration time and read during ordering and application. The
// registry stores its own copy; the stored descriptor can still be retuned
// through MiddlewareRegistry.Get before the next ordering pass.
//
// Exactly one of Handler or ErrorHandler must be set. Descriptors carrying
// an ErrorHandler are appended to the server's error-handling chain instead
// of the request chain.
type Middleware struct {
	// Name uniquely identifies the descriptor within a registry.
	Name string

	// Category controls which application phase mounts this descriptor.
	Category Category

	// Priority orders descriptors within a pass: higher runs earlier.
	// Zero is a valid priority.
	Priority int

	// Dependencies lists descriptor names that must be applied before this
	// one. Every listed name must already be registered.
	Dependencies []string

	// Handler is the standard middleware function.
	Handler MiddlewareFunc

	// ErrorHandler marks this descriptor as error-handling middleware.
	ErrorHandler ErrorHandlerFunc

	// Disabled excludes the descriptor from ordering and application.
	Disabled bool
}

// IsErrorHandler reports whether the descriptor mounts on the error chain.
func (m *Middleware) IsErrorHandler() bool {
	return m.ErrorHandler != nil
}

// validate checks the descriptor's intrinsic fields. Dependency existence is
// checked by the registry, which knows what is already registered.
func (m *Middleware) validate() error {
	if m == nil {
		return ErrNilMiddleware
	}
	if m.Name == "" {
		return ErrEmptyMiddlewareName
	}
	if !m.Category.Valid() {
		return fmt.Errorf("%w: %q (middleware %q)", ErrInvalidCategory, m.Category, m.Name)
	}
	if m.Handler == nil && m.ErrorHandler == nil {
		return fmt.Errorf("%w: middleware %q", ErrNoHandler, m.Name)
	}
	if m.Handler != nil && m.ErrorHandler != nil {
		return fmt.Errorf("%w: middleware %q", ErrAmbiguousHandler, m.Name)
	}
	return nil
}

// clone returns a shallow copy with its own dependency slice, so registry
// snapshots are not affected by later caller mutation.
func (m *Middleware) clone() *Middleware {
	cp := *m
	if len(m.Dependencies) > 0 {
		cp.Dependencies = append([]string(nil), m.Dependencies...)
	}
	return &cp
}
