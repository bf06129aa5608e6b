// Package store persists self-custody wallet sessions keyed by their opaque
// session token.
package store

import (
	"context"
	"time"
)

// WalletSessionStore looks up unexpired wallet sessions. Implementations
// return sentinel.ErrNotFound for missing tokens and sentinel.ErrExpired
// for tokens past their expiry.
type WalletSessionStore interface {
	Save(ctx context.Context, token, walletAddress string, expiresAt time.Time) error
	FindByToken(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}
