package httputil

import (
	"context"
	"net/http"
)

type contextKey string

// TraceIDKey is the context key carrying the request trace ID
const TraceIDKey contextKey = "trace_id"

// WithTraceID returns a context carrying the given trace ID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID gets a trace ID from the request context or headers.
// Kept in its own package to avoid circular imports between the server
// and its handlers.
func GetTraceID(r *http.Request) string {
	if traceID, ok := r.Context().Value(TraceIDKey).(string); ok && traceID != "" {
		return traceID
	}

	if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
		return traceID
	}

	return r.Header.Get("X-Request-ID")
}
