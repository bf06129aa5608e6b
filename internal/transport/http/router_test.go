package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"juicyid/internal/events"
	"juicyid/internal/identity"
	identityhandler "juicyid/internal/identity/handler"
	"juicyid/internal/link"
	linkhandler "juicyid/internal/link/handler"
	"juicyid/internal/mention"
	mentionhandler "juicyid/internal/mention/handler"
	"juicyid/internal/platform/metrics"
	"juicyid/internal/resolver"
	"juicyid/internal/session"
	"juicyid/pkg/testutil"
)

// fixedExtractor returns the same credential for every request regardless of
// access mode. Router tests only need the wiring, not the precedence chain.
type fixedExtractor struct {
	cred *session.Credential
}

func (f *fixedExtractor) FromRequest(_ *http.Request, _ session.AccessMode) (*session.Credential, error) {
	return f.cred, nil
}

type probeFunc func(ctx context.Context) error

func (p probeFunc) Ping(ctx context.Context) error { return p(ctx) }

// testMetrics is shared because metrics register on the default prometheus
// registry; a second New would collide.
var testMetrics = metrics.New()

func newTestRouter(t *testing.T, health map[string]HealthChecker) http.Handler {
	t.Helper()

	registry := identity.NewRegistry(identity.NewInMemoryStore(), events.NewPublisher(events.NewMemorySink()), nil)
	links := link.NewManager(link.NewInMemoryStore(), registry, nil)
	res := resolver.New(links, registry)
	parser := mention.NewParser(registry.Format(), registry)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	extractor := &fixedExtractor{cred: &session.Credential{Address: "0x1111111111111111111111111111111111111111"}}

	return NewRouter(Deps{
		Identity: identityhandler.New(registry, res, extractor, logger),
		Link:     linkhandler.New(links, extractor, logger),
		Mention:  mentionhandler.New(parser, extractor, logger),
		Metrics:  testMetrics,
		Logger:   logger,
		Health:   health,
	})
}

func TestRouterWiring(t *testing.T) {
	router := newTestRouter(t, nil)

	testutil.Given(t, "the assembled router", func(t *testing.T) {
		testutil.When(t, "claiming an identity through the full chain", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPut, "/v1/identity", map[string]string{
				"emoji":    "🍊",
				"username": "citrus",
			})
			rec := testutil.DoRequest(router, req)

			testutil.AssertStatusOK(t, rec)
			testutil.AssertJSONContains(t, rec, "username", "citrus")
			if got := rec.Header().Get("X-Request-Id"); got == "" {
				t.Error("expected a request id header on every response")
			}
		})

		testutil.When(t, "resolving it back", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/resolve?emoji=🍊&username=citrus"))

			testutil.AssertStatusOK(t, rec)
			testutil.AssertJSONContains(t, rec, "address", "0x1111111111111111111111111111111111111111")
		})

		testutil.When(t, "resolving mentions in free text", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/mentions/resolve", map[string]string{
				"text": "ping 🍊citrus",
			})
			rec := testutil.DoRequest(router, req)

			testutil.AssertStatusOK(t, rec)
		})

		testutil.When(t, "hitting an unknown route", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/nope"))
			testutil.AssertStatus(t, rec, http.StatusNotFound)
		})

		testutil.When(t, "scraping metrics", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
			testutil.AssertStatusOK(t, rec)
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	testutil.Given(t, "healthy backing dependencies", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthChecker{
			"postgres": probeFunc(func(context.Context) error { return nil }),
		})

		testutil.Then(t, "healthz reports ok", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
			testutil.AssertStatusOK(t, rec)
			testutil.AssertJSONContains(t, rec, "status", "OK")
		})
	})

	testutil.Given(t, "a failing dependency", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthChecker{
			"postgres": probeFunc(func(context.Context) error { return nil }),
			"redis":    probeFunc(func(context.Context) error { return errors.New("connection refused") }),
		})

		testutil.Then(t, "healthz reports unavailable", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
			testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
		})
	})
}
