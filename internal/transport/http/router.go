// Package httptransport assembles the public HTTP surface: the shared
// middleware chain, the feature routers and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	identityhandler "juicyid/internal/identity/handler"
	linkhandler "juicyid/internal/link/handler"
	mentionhandler "juicyid/internal/mention/handler"
	"juicyid/internal/platform/metrics"
	"juicyid/internal/platform/middleware"
	"juicyid/pkg/platform/httputil"
	"juicyid/pkg/platform/middleware/device"
	"juicyid/pkg/platform/middleware/metadata"
	"juicyid/pkg/platform/middleware/requesttime"
)

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Identity *identityhandler.Handler
	Link     *linkhandler.Handler
	Mention  *mentionhandler.Handler
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Health probes by dependency name, e.g. "postgres", "redis".
	Health map[string]HealthChecker
}

// NewRouter builds the full chi router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(deps.Metrics))

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(middleware.ContentTypeJSON)
		deps.Identity.Register(v1)
		deps.Link.Register(v1)
		deps.Mention.Register(v1)
	})

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func handleHealth(probes map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(probes))
		for name, probe := range probes {
			if err := probe.Ping(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
