package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"juicyid/internal/events"
	"juicyid/internal/identity"
	"juicyid/internal/link"
	"juicyid/internal/resolver"
	"juicyid/internal/session"
	dErrors "juicyid/pkg/domain-errors"
	"juicyid/pkg/testutil"
)

const (
	addrAlice = "0x1111111111111111111111111111111111111111"
	addrBob   = "0x2222222222222222222222222222222222222222"
)

// fakeExtractor stands in for the credential chain. The caller is fixed per
// router instance, which is all handler tests need.
type fakeExtractor struct {
	cred *session.Credential
}

func (f *fakeExtractor) FromRequest(_ *http.Request, mode session.AccessMode) (*session.Credential, error) {
	switch mode {
	case session.ModeOptional:
		return f.cred, nil
	case session.ModeStrict:
		if f.cred == nil || f.cred.Anonymous {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "a wallet or account credential is required")
		}
		return f.cred, nil
	default:
		if f.cred == nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "no usable credential found")
		}
		return f.cred, nil
	}
}

type fixture struct {
	router   http.Handler
	registry *identity.Registry
	links    *link.Manager
}

func newFixture(t *testing.T, caller *session.Credential) *fixture {
	t.Helper()

	registry := identity.NewRegistry(identity.NewInMemoryStore(), events.NewPublisher(events.NewMemorySink()), nil)
	links := link.NewManager(link.NewInMemoryStore(), registry, nil)
	res := resolver.New(links, registry)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(registry, res, &fakeExtractor{cred: caller}, logger)
	r := chi.NewRouter()
	h.Register(r)
	return &fixture{router: r, registry: registry, links: links}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestSetIdentity(t *testing.T) {
	f := newFixture(t, &session.Credential{Address: addrAlice})

	req := testutil.NewJSONRequest(t, http.MethodPut, "/identity", map[string]string{
		"emoji": "🍊", "username": "alice",
	})
	rec := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]any](t, rec)
	require.Equal(t, addrAlice, resp["address"])
	require.Equal(t, "🍊", resp["emoji"])
	require.Equal(t, "alice", resp["username"])
	require.NotEmpty(t, resp["created_at"])
}

func TestSetIdentityValidationAndConflict(t *testing.T) {
	f := newFixture(t, &session.Credential{Address: addrAlice})

	t.Run("invalid username is 422", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/identity", map[string]string{
			"emoji": "🍊", "username": "a!",
		})
		rec := f.do(t, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPut, "/identity", "{not json")
		rec := f.do(t, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

}

func TestPairConflictAcrossCallers(t *testing.T) {
	registry := identity.NewRegistry(identity.NewInMemoryStore(), events.NewPublisher(events.NewMemorySink()), nil)
	links := link.NewManager(link.NewInMemoryStore(), registry, nil)
	res := resolver.New(links, registry)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newRouter := func(addr string) http.Handler {
		h := New(registry, res, &fakeExtractor{cred: &session.Credential{Address: addr}}, logger)
		r := chi.NewRouter()
		h.Register(r)
		return r
	}
	alice := newRouter(addrAlice)
	bob := newRouter(addrBob)

	body := map[string]string{"emoji": "🍊", "username": "alice"}

	rec := httptest.NewRecorder()
	alice.ServeHTTP(rec, testutil.NewJSONRequest(t, http.MethodPut, "/identity", body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	bob.ServeHTTP(rec, testutil.NewJSONRequest(t, http.MethodPut, "/identity", body))
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	require.Equal(t, "conflict", errResp.Error)
	require.NotEmpty(t, errResp.ErrorDescription)
}

func TestMutationsRequireCredential(t *testing.T) {
	f := newFixture(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPut, "/identity", map[string]string{
		"emoji": "🍊", "username": "alice",
	})
	require.Equal(t, http.StatusUnauthorized, f.do(t, req).Code)

	require.Equal(t, http.StatusUnauthorized,
		f.do(t, testutil.NewRequest(t, http.MethodDelete, "/identity")).Code)
}

func TestDeleteIdentity(t *testing.T) {
	f := newFixture(t, &session.Credential{Address: addrAlice})

	req := testutil.NewJSONRequest(t, http.MethodPut, "/identity", map[string]string{
		"emoji": "🍊", "username": "alice",
	})
	require.Equal(t, http.StatusOK, f.do(t, req).Code)

	require.Equal(t, http.StatusNoContent,
		f.do(t, testutil.NewRequest(t, http.MethodDelete, "/identity")).Code)

	require.Equal(t, http.StatusNotFound,
		f.do(t, testutil.NewRequest(t, http.MethodGet, "/identity")).Code)
}

func TestGetIdentityResolvesLinks(t *testing.T) {
	f := newFixture(t, &session.Credential{Address: addrAlice})
	ctx := testutil.NewRequest(t, http.MethodGet, "/").Context()

	_, err := f.registry.SetIdentity(ctx, addrAlice, "🍊", "alice")
	require.NoError(t, err)
	_, err = f.links.LinkAddress(ctx, addrAlice, addrBob, link.LinkTypeManual, addrAlice)
	require.NoError(t, err)

	rec := f.do(t, testutil.NewRequest(t, http.MethodGet, "/identities/"+addrBob))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]any](t, rec)
	require.Equal(t, addrAlice, resp["address"])
	require.Equal(t, "alice", resp["username"])
}

func TestResolveAndAvailability(t *testing.T) {
	f := newFixture(t, &session.Credential{Address: addrAlice})
	ctx := testutil.NewRequest(t, http.MethodGet, "/").Context()

	_, err := f.registry.SetIdentity(ctx, addrAlice, "🍊", "alice")
	require.NoError(t, err)

	t.Run("resolve claimed pair", func(t *testing.T) {
		rec := f.do(t, testutil.NewRequest(t, http.MethodGet, "/resolve?emoji=🍊&username=alice"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, addrAlice, decode[map[string]string](t, rec)["address"])
	})

	t.Run("resolve unclaimed pair yields empty address", func(t *testing.T) {
		rec := f.do(t, testutil.NewRequest(t, http.MethodGet, "/resolve?emoji=🍋&username=ghost"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, decode[map[string]string](t, rec)["address"])
	})

	t.Run("missing query parameters is 400", func(t *testing.T) {
		rec := f.do(t, testutil.NewRequest(t, http.MethodGet, "/resolve?emoji=🍊"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("availability excludes the caller's own claim", func(t *testing.T) {
		rec := f.do(t, testutil.NewRequest(t, http.MethodGet, "/availability?emoji=🍊&username=alice"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, decode[map[string]bool](t, rec)["available"])
	})
}

func TestHistoryAndSearch(t *testing.T) {
	f := newFixture(t, &session.Credential{Address: addrAlice})
	ctx := testutil.NewRequest(t, http.MethodGet, "/").Context()

	_, err := f.registry.SetIdentity(ctx, addrAlice, "🍊", "alice")
	require.NoError(t, err)
	_, err = f.registry.SetIdentity(ctx, addrAlice, "🍇", "wanderer")
	require.NoError(t, err)

	t.Run("history lists tenures newest first", func(t *testing.T) {
		rec := f.do(t, testutil.NewRequest(t, http.MethodGet, "/identities/"+addrAlice+"/history"))
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[struct {
			History []map[string]any `json:"history"`
		}](t, rec)
		require.Len(t, resp.History, 2)
		require.Equal(t, "updated", resp.History[0]["change"])
	})

	t.Run("search by prefix", func(t *testing.T) {
		rec := f.do(t, testutil.NewRequest(t, http.MethodGet, "/identities?prefix=wan"))
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[struct {
			Identities []map[string]any `json:"identities"`
		}](t, rec)
		require.Len(t, resp.Identities, 1)
		require.Equal(t, "wanderer", resp.Identities[0]["username"])
	})

	t.Run("bad limit is 400", func(t *testing.T) {
		rec := f.do(t, testutil.NewRequest(t, http.MethodGet, "/identities?limit=abc"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
