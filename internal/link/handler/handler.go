// Package handler exposes the address link manager over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"juicyid/internal/link"
	"juicyid/internal/platform/middleware"
	"juicyid/internal/session"
	dErrors "juicyid/pkg/domain-errors"
	"juicyid/pkg/platform/httputil"
	"juicyid/pkg/platform/middleware/device"
	"juicyid/pkg/platform/middleware/metadata"
	"juicyid/pkg/requestcontext"
)

// Service is the slice of the link manager the handler needs.
type Service interface {
	LinkAddress(ctx context.Context, primary, linked string, linkType link.LinkType, performedBy string) (*link.LinkedAddress, error)
	UnlinkAddress(ctx context.Context, linkedAddr, performedBy string) (bool, error)
	GetLinkedAddresses(ctx context.Context, primary string) ([]link.LinkedAddress, error)
	GetAllUserAddresses(ctx context.Context, addr string) (*link.UserAddresses, error)
	GetLinkHistory(ctx context.Context, addr string) ([]link.HistoryEntry, error)
	CanBeLinkTarget(ctx context.Context, addr string) (bool, string, error)
	CanBePrimary(ctx context.Context, addr string) (bool, string, error)
}

type Handler struct {
	service   Service
	extractor middleware.CredentialExtractor
	logger    *slog.Logger
}

func New(service Service, extractor middleware.CredentialExtractor, logger *slog.Logger) *Handler {
	return &Handler{service: service, extractor: extractor, logger: logger}
}

// Register mounts the link routes. Link mutations require a wallet or
// managed-account credential; pseudo-addresses cannot hold linked wallets.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Credential(h.extractor, session.ModeStrict, h.logger))
		r.Post("/links", h.handleLink)
		r.Delete("/links/{address}", h.handleUnlink)
		r.Get("/links", h.handleListOwn)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Credential(h.extractor, session.ModeOptional, h.logger))
		r.Get("/addresses/{address}", h.handleAllAddresses)
		r.Get("/addresses/{address}/link-history", h.handleHistory)
		r.Get("/links/eligibility", h.handleEligibility)
	})
}

type linkRequest struct {
	LinkedAddress string `json:"linked_address"`
	LinkType      string `json:"link_type"`
}

type linkResponse struct {
	PrimaryAddress string    `json:"primary_address"`
	LinkedAddress  string    `json:"linked_address"`
	LinkType       string    `json:"link_type"`
	CreatedAt      time.Time `json:"created_at"`
}

func toLinkResponse(row link.LinkedAddress) linkResponse {
	return linkResponse{
		PrimaryAddress: row.PrimaryAddress,
		LinkedAddress:  row.LinkedAddress,
		LinkType:       string(row.LinkType),
		CreatedAt:      row.CreatedAt,
	}
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[linkRequest](w, r)
	if !ok {
		return
	}

	caller := requestcontext.Address(ctx)
	row, err := h.service.LinkAddress(ctx, caller, req.LinkedAddress, link.LinkType(req.LinkType), caller)
	if err != nil {
		h.logger.WarnContext(ctx, "link rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "address linked",
		"primary", row.PrimaryAddress,
		"linked", row.LinkedAddress,
		"link_type", row.LinkType,
		"device", device.GetDeviceFingerprint(ctx),
		"client_ip", metadata.GetClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, toLinkResponse(*row))
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	removed, err := h.service.UnlinkAddress(ctx, chi.URLParam(r, "address"), requestcontext.Address(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !removed {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no link you may remove exists for this address"))
		return
	}
	h.logger.InfoContext(ctx, "address unlinked",
		"linked", chi.URLParam(r, "address"),
		"device", device.GetDeviceFingerprint(ctx),
		"client_ip", metadata.GetClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	links, err := h.service.GetLinkedAddresses(ctx, requestcontext.Address(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]linkResponse, 0, len(links))
	for _, row := range links {
		out = append(out, toLinkResponse(row))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"links": out})
}

func (h *Handler) handleAllAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := h.service.GetAllUserAddresses(ctx, chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	linked := make([]linkResponse, 0, len(all.LinkedAddresses))
	for _, row := range all.LinkedAddresses {
		linked = append(linked, toLinkResponse(row))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"primary_address":  all.PrimaryAddress,
		"linked_addresses": linked,
	})
}

type historyEntryResponse struct {
	PrimaryAddress string    `json:"primary_address"`
	LinkedAddress  string    `json:"linked_address"`
	LinkType       string    `json:"link_type"`
	Action         string    `json:"action"`
	PerformedAt    time.Time `json:"performed_at"`
	PerformedBy    string    `json:"performed_by"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.service.GetLinkHistory(ctx, chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			PrimaryAddress: e.PrimaryAddress,
			LinkedAddress:  e.LinkedAddress,
			LinkType:       string(e.LinkType),
			Action:         string(e.Action),
			PerformedAt:    e.PerformedAt,
			PerformedBy:    e.PerformedBy,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": out})
}

// handleEligibility answers whether an address could be a link target or a
// primary right now. Advisory; the write path re-validates.
func (h *Handler) handleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr := r.URL.Query().Get("address")
	if addr == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "address query parameter is required"))
		return
	}

	var (
		eligible bool
		reason   string
		err      error
	)
	switch role := r.URL.Query().Get("as"); role {
	case "primary":
		eligible, reason, err = h.service.CanBePrimary(ctx, addr)
	case "", "target":
		eligible, reason, err = h.service.CanBeLinkTarget(ctx, addr)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "as must be primary or target"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := map[string]any{"eligible": eligible}
	if reason != "" {
		resp["reason"] = reason
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
