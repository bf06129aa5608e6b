// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
// Usage in services (read values):
//
//	addr := requestcontext.Address(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithAddress(ctx, addr)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	addressKey     struct{}
	userIDKey      struct{}
	anonymousKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyAddress     = addressKey{}
	ContextKeyUserID      = userIDKey{}
	ContextKeyAnonymous   = anonymousKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Address retrieves the canonical caller address resolved by the credential
// extractor. Empty if the request carried no usable credential.
func Address(ctx context.Context) string {
	if addr, ok := ctx.Value(ContextKeyAddress).(string); ok {
		return addr
	}
	return ""
}

// WithAddress injects a caller address into the context.
func WithAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ContextKeyAddress, addr)
}

// UserID retrieves the registered-user id attached during credential
// extraction, if any.
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// WithUserID injects a user id into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// IsAnonymous reports whether the caller address is a derived pseudo-address
// rather than a wallet or managed account.
func IsAnonymous(ctx context.Context) bool {
	if anon, ok := ctx.Value(ContextKeyAnonymous).(bool); ok {
		return anon
	}
	return false
}

// WithAnonymous marks the context as carrying a pseudo-address credential.
func WithAnonymous(ctx context.Context, anonymous bool) context.Context {
	return context.WithValue(ctx, ContextKeyAnonymous, anonymous)
}

// RequestID retrieves the request id set by middleware, empty if unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request id into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}

// Now returns the request-scoped time if one was captured, falling back to
// time.Now. Every write inside one request observes the same timestamp.
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
