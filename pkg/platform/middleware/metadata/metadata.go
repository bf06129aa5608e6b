// Package metadata captures where a request came from: the originating
// client IP and the raw User-Agent string. Both are stashed on the context
// early so the logger and feature handlers can attach them without touching
// the request again.
package metadata

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const (
	keyClientIP ctxKey = iota
	keyUserAgent
)

// ClientMetadata records the client IP and User-Agent on the context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, keyClientIP, ClientIPFromRequest(r))
		ctx = context.WithValue(ctx, keyUserAgent, r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(keyClientIP).(string)
	return ip
}

func GetUserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(keyUserAgent).(string)
	return ua
}

// WithClientMetadata injects both values directly, for tests that skip the
// middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

// ClientIPFromRequest resolves the originating client IP, preferring proxy
// headers over the socket address. X-Forwarded-For may carry a chain; the
// first entry is the client.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	// RemoteAddr is host:port, with the host bracketed for IPv6.
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
