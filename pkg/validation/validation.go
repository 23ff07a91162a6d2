package validation

import (
	"fmt"
	"strings"
)

// Schema is a predicate over a request payload. Validate returns nil on
// success or an Errors value describing every failing field.
type Schema interface {
	Validate(payload any) error
}

// Func adapts a function to the Schema interface.
type Func func(payload any) error

// Validate implements Schema.
func (f Func) Validate(payload any) error {
	return f(payload)
}

// FieldError describes a single failed field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Errors is the structured result of a failed validation.
type Errors []FieldError

// Error implements the error interface.
func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error and returns the extended list, so callers can
// accumulate failures without pre-declaring the slice.
func (e Errors) Add(field, message, code string) Errors {
	return append(e, FieldError{Field: field, Message: message, Code: code})
}

// OrNil returns nil when the list is empty, making it safe to return the
// accumulator directly from a Validate implementation.
func (e Errors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
