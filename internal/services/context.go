package services

import "context"

type contextKey string

const (
	eventTypeKey contextKey = "event_type"
	requestIDKey contextKey = "request_id"
)

// WithEventType annotates context with the bus event type being handled.
func WithEventType(ctx context.Context, eventType string) context.Context {
	if eventType == "" {
		return ctx
	}
	return context.WithValue(ctx, eventTypeKey, eventType)
}

// EventTypeFromContext returns the event type if present.
func EventTypeFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(eventTypeKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
