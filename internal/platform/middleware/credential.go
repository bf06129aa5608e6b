package middleware

import (
	"log/slog"
	"net/http"

	"juicyid/internal/session"
	"juicyid/pkg/platform/httputil"
	"juicyid/pkg/requestcontext"
)

// CredentialExtractor is the slice of the session extractor this middleware
// needs.
type CredentialExtractor interface {
	FromRequest(r *http.Request, mode session.AccessMode) (*session.Credential, error)
}

// Credential runs the credential precedence chain in the given access mode
// and stores the result in the request context. Routes behind strict or
// flexible mode never see a request without a caller address; optional mode
// passes unauthenticated requests through with an empty address.
func Credential(extractor CredentialExtractor, mode session.AccessMode, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, err := extractor.FromRequest(r, mode)
			if err != nil {
				logger.WarnContext(r.Context(), "credential rejected",
					"mode", mode,
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				httputil.WriteError(w, err)
				return
			}

			ctx := r.Context()
			if cred != nil {
				ctx = requestcontext.WithAddress(ctx, cred.Address)
				ctx = requestcontext.WithAnonymous(ctx, cred.Anonymous)
				if cred.UserID != "" {
					ctx = requestcontext.WithUserID(ctx, cred.UserID)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
