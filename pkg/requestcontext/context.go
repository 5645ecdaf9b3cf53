// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and the feed consumer read them without
// importing net/http. Feed handlers set the request ID to the event ID so audit
// entries from both update sources correlate the same way.
//
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//	operator := requestcontext.OperatorID(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	operatorIDKey    struct{}
	operatorNameKey  struct{}
	operatorRolesKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyOperatorID    = operatorIDKey{}
	ContextKeyOperatorName  = operatorNameKey{}
	ContextKeyOperatorRoles = operatorRolesKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// OperatorID retrieves the authenticated operator's platform user ID.
func OperatorID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyOperatorID).(string); ok {
		return v
	}
	return ""
}

// OperatorName retrieves the authenticated operator's display name.
func OperatorName(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyOperatorName).(string); ok {
		return v
	}
	return ""
}

// WithOperator injects the operator identity into the context.
func WithOperator(ctx context.Context, operatorID, name string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyOperatorID, operatorID)
	return context.WithValue(ctx, ContextKeyOperatorName, name)
}

// OperatorRoles retrieves the role ids the operator holds on the platform.
func OperatorRoles(ctx context.Context) []string {
	if v, ok := ctx.Value(ContextKeyOperatorRoles).([]string); ok {
		return v
	}
	return nil
}

func WithOperatorRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, ContextKeyOperatorRoles, roles)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (feed consumer, startup resync, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
