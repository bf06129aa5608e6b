// Package session turns a request's raw credentials into a normalized
// Credential. Three credential kinds are tried in strict precedence order:
// a managed-account bearer token, a self-custody wallet session token, then
// an anonymous session id. Access modes differ only in what they do with
// the chain's result, never in the chain itself.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"juicyid/internal/address"
	jwttoken "juicyid/internal/jwt_token"
	"juicyid/internal/session/store"
	dErrors "juicyid/pkg/domain-errors"
	"juicyid/pkg/platform/circuit"
	"juicyid/pkg/platform/sentinel"
)

const (
	bearerPrefix        = "Bearer "
	headerWalletSession = "X-Wallet-Session"
	queryWalletSession  = "walletSession"
	headerAnonSession   = "X-Anon-Session"
	anonSessionPrefix   = "anon_"
)

// TokenValidator validates a managed-account bearer token. The jwt_token
// service satisfies it; tests substitute fakes.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// UserDirectory is the read-only join from a wallet address to a registered
// user, if any. Empty user id means the wallet is not associated.
type UserDirectory interface {
	FindUserIDByAddress(ctx context.Context, addr string) (string, error)
}

// CustodialDeriver derives the deterministic custodial address for a user's
// address index.
type CustodialDeriver func(userID string, index uint32) string

// PseudoDeriver derives the deterministic pseudo-address for an anonymous
// session id.
type PseudoDeriver func(sessionID string) string

// Extractor runs the credential precedence chain.
type Extractor struct {
	tokens          TokenValidator
	sessions        store.WalletSessionStore
	users           UserDirectory
	deriveCustodial CustodialDeriver
	derivePseudo    PseudoDeriver
	usersBreaker    *circuit.Breaker
	lastProbe       atomic.Int64
	logger          *slog.Logger
}

// usersProbeInterval is how often an open user-directory circuit lets a
// single lookup through to test for recovery.
const usersProbeInterval = 30 * time.Second

func NewExtractor(
	tokens TokenValidator,
	sessions store.WalletSessionStore,
	users UserDirectory,
	deriveCustodial CustodialDeriver,
	derivePseudo PseudoDeriver,
	logger *slog.Logger,
) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		tokens:          tokens,
		sessions:        sessions,
		users:           users,
		deriveCustodial: deriveCustodial,
		derivePseudo:    derivePseudo,
		usersBreaker:    circuit.New("user-directory", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:          logger,
	}
}

// FromRequest runs the precedence chain and applies the access mode to its
// result. Only storage failures are errors in optional mode; strict and
// flexible additionally reject requests the mode does not accept.
func (e *Extractor) FromRequest(r *http.Request, mode AccessMode) (*Credential, error) {
	cred, err := e.extract(r)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeStrict:
		if cred == nil || cred.Anonymous {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "a wallet or account credential is required")
		}
		return cred, nil
	case ModeFlexible:
		if cred == nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "no usable credential found")
		}
		return cred, nil
	case ModeOptional:
		return cred, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInternal, "unknown access mode %q", mode)
	}
}

// extract is the mode-independent precedence chain. A credential kind that
// is present but invalid does not fail the chain; the next kind is tried.
func (e *Extractor) extract(r *http.Request) (*Credential, error) {
	ctx := r.Context()

	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, bearerPrefix); ok {
			claims, err := e.tokens.ValidateToken(token)
			if err == nil {
				addr := e.deriveCustodial(claims.UserID, claims.AddressIndex)
				return &Credential{
					Address: address.Normalize(addr),
					UserID:  claims.UserID,
				}, nil
			}
			e.logger.DebugContext(ctx, "bearer token rejected", "error", err)
		}
	}

	if token := walletSessionToken(r); token != "" {
		walletAddr, err := e.sessions.FindByToken(ctx, token)
		switch {
		case err == nil:
			cred := &Credential{Address: address.Normalize(walletAddr)}
			cred.UserID = e.lookupUserID(ctx, cred.Address)
			return cred, nil
		case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired):
			e.logger.DebugContext(ctx, "wallet session token rejected", "error", err)
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up wallet session")
		}
	}

	if anonID := r.Header.Get(headerAnonSession); strings.HasPrefix(anonID, anonSessionPrefix) {
		return &Credential{
			Address:   address.Normalize(e.derivePseudo(anonID)),
			Anonymous: true,
		}, nil
	}

	return nil, nil
}

// lookupUserID joins the wallet address to a registered user. The join is
// best-effort: a failed or circuit-broken lookup degrades to a credential
// without a user id rather than failing the chain.
func (e *Extractor) lookupUserID(ctx context.Context, addr string) string {
	if e.usersBreaker.IsOpen() {
		last := e.lastProbe.Load()
		now := time.Now().UnixNano()
		if now-last < int64(usersProbeInterval) || !e.lastProbe.CompareAndSwap(last, now) {
			return ""
		}
	}
	userID, err := e.users.FindUserIDByAddress(ctx, addr)
	if err != nil {
		if _, change := e.usersBreaker.RecordFailure(); change.Opened {
			e.lastProbe.Store(time.Now().UnixNano())
			e.logger.WarnContext(ctx, "user directory circuit opened", "breaker", e.usersBreaker.Name())
		}
		e.logger.WarnContext(ctx, "user directory lookup failed", "error", err)
		return ""
	}
	if _, change := e.usersBreaker.RecordSuccess(); change.Closed {
		e.logger.InfoContext(ctx, "user directory circuit closed", "breaker", e.usersBreaker.Name())
	}
	return userID
}

func walletSessionToken(r *http.Request) string {
	if token := r.Header.Get(headerWalletSession); token != "" {
		return token
	}
	return r.URL.Query().Get(queryWalletSession)
}
