// Package handler exposes mention parsing and resolution over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"juicyid/internal/mention"
	"juicyid/internal/platform/middleware"
	"juicyid/internal/session"
	dErrors "juicyid/pkg/domain-errors"
	"juicyid/pkg/platform/httputil"
)

// maxTextBytes bounds the text a single request may scan.
const maxTextBytes = 64 * 1024

// Service is the slice of the mention parser the handler needs.
type Service interface {
	FindMentions(text string) []mention.Mention
	ResolveAllMentions(ctx context.Context, text string) (map[string]string, error)
}

type Handler struct {
	service   Service
	extractor middleware.CredentialExtractor
	logger    *slog.Logger
}

func New(service Service, extractor middleware.CredentialExtractor, logger *slog.Logger) *Handler {
	return &Handler{service: service, extractor: extractor, logger: logger}
}

// Register mounts the mention routes. Anyone may resolve mentions.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Credential(h.extractor, session.ModeOptional, h.logger))
		r.Post("/mentions/resolve", h.handleResolve)
	})
}

type resolveRequest struct {
	Text string `json:"text"`
}

type mentionResponse struct {
	MatchedText string `json:"matched_text"`
	Emoji       string `json:"emoji"`
	Username    string `json:"username"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Address     string `json:"address,omitempty"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[resolveRequest](w, r)
	if !ok {
		return
	}
	if len(req.Text) > maxTextBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "text exceeds the 64KiB limit"))
		return
	}

	resolved, err := h.service.ResolveAllMentions(ctx, req.Text)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	mentions := h.service.FindMentions(req.Text)
	out := make([]mentionResponse, 0, len(mentions))
	for _, m := range mentions {
		out = append(out, mentionResponse{
			MatchedText: m.MatchedText,
			Emoji:       m.Emoji,
			Username:    m.Username,
			Start:       m.Start,
			End:         m.End,
			Address:     resolved[m.MatchedText],
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"mentions": out})
}
