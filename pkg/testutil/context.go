package testutil

import (
	"net/http"
	"time"

	"juicyid/pkg/requestcontext"
)

// WithCaller attaches a caller address to the request context, simulating
// what the credential middleware does for authenticated requests.
func WithCaller(req *http.Request, addr string) *http.Request {
	ctx := requestcontext.WithAddress(req.Context(), addr)
	return req.WithContext(ctx)
}

// WithAnonymousCaller attaches a pseudo-address credential to the request
// context.
func WithAnonymousCaller(req *http.Request, addr string) *http.Request {
	ctx := requestcontext.WithAddress(req.Context(), addr)
	ctx = requestcontext.WithAnonymous(ctx, true)
	return req.WithContext(ctx)
}

// WithUser attaches both a caller address and its registered user id.
func WithUser(req *http.Request, addr, userID string) *http.Request {
	ctx := requestcontext.WithAddress(req.Context(), addr)
	if userID != "" {
		ctx = requestcontext.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

// WithFrozenTime pins the request-scoped clock, so assertions can compare
// timestamps exactly.
func WithFrozenTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
