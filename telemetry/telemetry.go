// Package telemetry provides the logging surface used across runctx. The
// Logger interface decouples packages from a concrete logging library; the
// Clue implementation delegates to goa.design/clue/log and the noop
// implementation silences output for tests and embedders with their own
// stack.
package telemetry

import "context"

// Logger emits structured log records with alternating key/value pairs.
type Logger interface {
	// Debug emits a debug-level message with structured key-value pairs.
	Debug(ctx context.Context, msg string, keyvals ...any)
	// Info emits an info-level message with structured key-value pairs.
	Info(ctx context.Context, msg string, keyvals ...any)
	// Warn emits a warning-level message with structured key-value pairs.
	Warn(ctx context.Context, msg string, keyvals ...any)
	// Error emits an error-level message with structured key-value pairs.
	Error(ctx context.Context, msg string, keyvals ...any)
}
