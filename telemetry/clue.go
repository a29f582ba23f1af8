package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	"goa.design/runctx/mdc"
)

// ClueLogger wraps goa.design/clue/log. The logger reads formatting and
// debug settings from the context (set via log.Context and
// log.WithFormat/log.WithDebug).
type ClueLogger struct{}

// NewClueLogger constructs a Logger that delegates to goa.design/clue/log.
func NewClueLogger() Logger {
	return ClueLogger{}
}

// Debug emits a debug-level log message with structured key-value pairs.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	fielders := append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)
	log.Debug(ctx, fielders...)
}

// Info emits an info-level log message with structured key-value pairs.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	fielders := append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)
	log.Info(ctx, fielders...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := []log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}
	fielders = append(fielders, kvSliceToClue(keyvals)...)
	log.Warn(ctx, fielders...)
}

// Error emits an error-level log message with structured key-value pairs.
func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	fielders := append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)
	log.Error(ctx, nil, fielders...)
}

// LogContext annotates ctx with the worker's current ambient diagnostic
// context so every Clue log statement issued under the returned context
// carries those keys. This is the diagnostic-sink side of the propagation
// mechanism: the sink reads whatever the occupying task installed, without
// explicit parameter passing at call sites.
//
// The snapshot is taken eagerly; call LogContext again after the ambient
// state changes to pick up new entries.
func LogContext(ctx context.Context, s *mdc.State) context.Context {
	snap := s.Snapshot()
	if len(snap) == 0 {
		return ctx
	}
	fielders := make([]log.Fielder, 0, len(snap))
	for k, v := range snap {
		fielders = append(fielders, log.KV{K: k, V: v})
	}
	return log.With(ctx, fielders...)
}

// MergeContext injects logging, tracing, and baggage metadata carried by
// base into ctx. Worker adapters use it to rehydrate the caller context
// (Clue logger + OTEL span) inside task handlers so downstream code
// inherits the same observability state even when the host runtime creates
// a fresh context per resumption. When base is nil the original ctx is
// returned.
func MergeContext(ctx, base context.Context) context.Context {
	if base == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = log.WithContext(ctx, base)
	if bag := baggage.FromContext(base); bag.Len() > 0 {
		ctx = baggage.ContextWithBaggage(ctx, bag)
	}
	if spanCtx := trace.SpanContextFromContext(base); spanCtx.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, spanCtx)
	}
	return ctx
}

// kvSliceToClue converts variadic key-value pairs (k1, v1, k2, v2, ...)
// into Clue's log.Fielder slice. Non-string keys are skipped; an odd
// trailing key is paired with nil.
func kvSliceToClue(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fielders = append(fielders, log.KV{K: k, V: v})
	}
	return fielders
}
