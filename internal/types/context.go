package types

import "context"

// contextKey is an unexported type to prevent key collisions with other
// packages storing values in the same context.
type contextKey int

const requestIDKey contextKey = iota

// WithRequestID returns a copy of ctx carrying the given request ID.
// The API middleware assigns one per inbound request; scheduled runs
// assign one per job invocation so log lines correlate.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request ID stored in ctx, or "" if absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
