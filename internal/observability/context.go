package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
	traceIDKey   contextKey = "trace_id"
	spanIDKey    contextKey = "span_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithUserID adds the authenticated caller's user id to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated caller's user id from
// context. Returns empty string if not present, i.e. the request is
// unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(userIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithTraceSpan adds trace and span IDs to the context.
func WithTraceSpan(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, spanID)
	return ctx
}

// TraceSpanFromContext retrieves trace and span IDs from context.
// Returns empty strings if not present.
func TraceSpanFromContext(ctx context.Context) (traceID, spanID string) {
	if v := ctx.Value(traceIDKey); v != nil {
		if id, ok := v.(string); ok {
			traceID = id
		}
	}
	if v := ctx.Value(spanIDKey); v != nil {
		if id, ok := v.(string); ok {
			spanID = id
		}
	}
	return traceID, spanID
}

// RequestContext bundles the per-request observability fields threaded
// through a handler call.
type RequestContext struct {
	RequestID string
	UserID    string
	TraceID   string
	SpanID    string
}

// WithRequestContextFull adds all request context fields to the context.
func WithRequestContextFull(ctx context.Context, rc RequestContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.UserID != "" {
		ctx = WithUserID(ctx, rc.UserID)
	}
	if rc.TraceID != "" || rc.SpanID != "" {
		ctx = WithTraceSpan(ctx, rc.TraceID, rc.SpanID)
	}
	return ctx
}

// RequestContextFromContext extracts all request context fields from the context.
func RequestContextFromContext(ctx context.Context) RequestContext {
	traceID, spanID := TraceSpanFromContext(ctx)

	return RequestContext{
		RequestID: RequestIDFromContext(ctx),
		UserID:    UserIDFromContext(ctx),
		TraceID:   traceID,
		SpanID:    spanID,
	}
}
