package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Handler-level timeouts are enforced by the
// middleware chain; the server only guards against slow-header clients and
// idle connection buildup.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
