package logging

import (
	"log/slog"
)

// NewNopLogger creates a logger that discards all output.
// Services fall back to it when logging is not configured, e.g. in tests.
func NewNopLogger() Logger {
	return slog.New(slog.DiscardHandler)
}
