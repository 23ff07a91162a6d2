package middlewares

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/anvil/internal"
	"github.com/dmitrymomot/anvil/pkg/validation"
)

// Preset names and priorities for error handlers. The JSON responder
// runs last in the chain so specific handlers registered with higher
// priority get first refusal.
const (
	JSONErrorName     = "json-error"
	JSONErrorPriority = 10

	ErrorLoggerName     = "error-logger"
	ErrorLoggerPriority = 20
)

// HTTPError carries a status code to the error handler chain.
type HTTPError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("http error %d", e.Status)
}

// NewHTTPError creates an HTTPError with the given status and message.
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

// AsHTTPError extracts an HTTPError from an error if present.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

type jsonErrorBody struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// JSONError returns an error-handler descriptor that renders every
// error as a JSON body. HTTPError picks its own status, validation
// errors map to 422, everything else to 500 with a generic message so
// internals never leak to clients.
func JSONError() *internal.Middleware {
	return &internal.Middleware{
		Name:     JSONErrorName,
		Category: internal.CategoryCustom,
		Priority: JSONErrorPriority,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) error {
			status := http.StatusInternalServerError
			body := jsonErrorBody{Error: http.StatusText(status)}

			var verrs validation.Errors
			switch {
			case errors.As(err, &verrs):
				status = http.StatusUnprocessableEntity
				body = jsonErrorBody{Error: "validation failed", Fields: verrs}
			default:
				if he, ok := AsHTTPError(err); ok {
					status = he.Status
					body = jsonErrorBody{Error: he.Error()}
				}
			}

			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
			return nil
		},
	}
}

// ErrorLogger returns an error-handler descriptor that logs the error
// and passes it along unhandled so a responder further down the chain
// can render it.
func ErrorLogger(log *slog.Logger) *internal.Middleware {
	if log == nil {
		log = slog.Default()
	}
	return &internal.Middleware{
		Name:     ErrorLoggerName,
		Category: internal.CategoryCustom,
		Priority: ErrorLoggerPriority,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) error {
			log.ErrorContext(r.Context(), "request failed",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
			)
			return err
		},
	}
}
