// Package handler exposes the identity registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"juicyid/internal/identity"
	"juicyid/internal/platform/middleware"
	"juicyid/internal/session"
	dErrors "juicyid/pkg/domain-errors"
	"juicyid/pkg/platform/httputil"
	"juicyid/pkg/requestcontext"
)

// Service is the slice of the identity registry the handler needs.
type Service interface {
	SetIdentity(ctx context.Context, addr, emoji, username string) (*identity.Identity, error)
	DeleteIdentity(ctx context.Context, addr string) error
	ResolveIdentity(ctx context.Context, emoji, username string) (string, error)
	IsIdentityAvailable(ctx context.Context, emoji, username, excludeAddr string) (bool, error)
	GetIdentityHistory(ctx context.Context, addr string) ([]identity.HistoryEntry, error)
	SearchIdentities(ctx context.Context, prefix string, limit int) ([]identity.Identity, error)
}

// ResolvedLookup resolves an address through the link graph before the
// identity lookup, so linked addresses display their primary's identity.
type ResolvedLookup interface {
	GetIdentityByAddressResolved(ctx context.Context, addr string) (*identity.Identity, error)
}

type Handler struct {
	service   Service
	resolved  ResolvedLookup
	extractor middleware.CredentialExtractor
	logger    *slog.Logger
}

func New(service Service, resolved ResolvedLookup, extractor middleware.CredentialExtractor, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		resolved:  resolved,
		extractor: extractor,
		logger:    logger,
	}
}

// Register mounts the identity routes. Mutations accept any credential kind
// including anonymous pseudo-addresses, which own identities like any other
// address. Lookups work without credentials.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Credential(h.extractor, session.ModeFlexible, h.logger))
		r.Put("/identity", h.handleSetIdentity)
		r.Delete("/identity", h.handleDeleteIdentity)
		r.Get("/identity", h.handleGetOwnIdentity)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Credential(h.extractor, session.ModeOptional, h.logger))
		r.Get("/identities", h.handleSearch)
		r.Get("/identities/{address}", h.handleGetIdentity)
		r.Get("/identities/{address}/history", h.handleHistory)
		r.Get("/resolve", h.handleResolve)
		r.Get("/availability", h.handleAvailability)
	})
}

type setIdentityRequest struct {
	Emoji    string `json:"emoji"`
	Username string `json:"username"`
}

type identityResponse struct {
	Address   string    `json:"address"`
	Emoji     string    `json:"emoji"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toIdentityResponse(ident *identity.Identity) identityResponse {
	return identityResponse{
		Address:   ident.Address,
		Emoji:     ident.Emoji,
		Username:  ident.Username,
		CreatedAt: ident.CreatedAt,
		UpdatedAt: ident.UpdatedAt,
	}
}

func (h *Handler) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[setIdentityRequest](w, r)
	if !ok {
		return
	}

	ident, err := h.service.SetIdentity(ctx, requestcontext.Address(ctx), req.Emoji, req.Username)
	if err != nil {
		h.logger.WarnContext(ctx, "identity claim rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIdentityResponse(ident))
}

func (h *Handler) handleDeleteIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.DeleteIdentity(ctx, requestcontext.Address(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetOwnIdentity(w http.ResponseWriter, r *http.Request) {
	h.writeResolvedIdentity(w, r, requestcontext.Address(r.Context()))
}

func (h *Handler) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	h.writeResolvedIdentity(w, r, chi.URLParam(r, "address"))
}

func (h *Handler) writeResolvedIdentity(w http.ResponseWriter, r *http.Request, addr string) {
	ctx := r.Context()

	ident, err := h.resolved.GetIdentityByAddressResolved(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if ident == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no identity for this address"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIdentityResponse(ident))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emoji := r.URL.Query().Get("emoji")
	username := r.URL.Query().Get("username")
	if emoji == "" || username == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "emoji and username query parameters are required"))
		return
	}

	addr, err := h.service.ResolveIdentity(ctx, emoji, username)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"address": addr})
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emoji := r.URL.Query().Get("emoji")
	username := r.URL.Query().Get("username")
	if emoji == "" || username == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "emoji and username query parameters are required"))
		return
	}

	// The caller's own claim does not count against availability.
	available, err := h.service.IsIdentityAvailable(ctx, emoji, username, requestcontext.Address(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"available": available})
}

type historyEntryResponse struct {
	Emoji     string     `json:"emoji"`
	Username  string     `json:"username"`
	Change    string     `json:"change"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.service.GetIdentityHistory(ctx, chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			Emoji:     e.Emoji,
			Username:  e.Username,
			Change:    string(e.Change),
			StartedAt: e.StartedAt,
			EndedAt:   e.EndedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prefix := r.URL.Query().Get("prefix")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		limit = parsed
	}

	idents, err := h.service.SearchIdentities(ctx, prefix, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]identityResponse, 0, len(idents))
	for i := range idents {
		out = append(out, toIdentityResponse(&idents[i]))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"identities": out})
}
