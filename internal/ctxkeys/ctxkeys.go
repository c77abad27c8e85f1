// Package ctxkeys defines the typed context keys threaded through a
// record's processing: the trace_id, so every log line and span across
// ingress, the three analyzers, and the synthesizer can be correlated
// back to one TelemetryRecord without passing it as an extra parameter
// everywhere.
package ctxkeys

import "context"

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID attaches a record's trace_id to ctx for the remainder of
// its processing.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID retrieves the trace_id attached by WithTraceID, if any.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
