package internal

import (
	"io"
	"log/slog"
)

// discardLogger returns a logger that drops everything. Used as the default
// before options run, same as the rest of the codebase.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
