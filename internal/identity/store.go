package identity

import "context"

// Store persists identities and their history log. The registry service is
// the sole writer.
//
// Implementations return sentinel errors for infrastructure facts:
// sentinel.ErrNotFound when a row is missing, sentinel.ErrConflict when the
// (emoji, lowercase username) uniqueness constraint rejects an upsert. The
// constraint is the authoritative conflict resolver; two concurrent claims
// can both pass the availability pre-check and only one wins the write.
type Store interface {
	// Upsert inserts or replaces the identity keyed by its address.
	Upsert(ctx context.Context, ident Identity) error
	// Delete removes the identity for an address, ErrNotFound if none.
	Delete(ctx context.Context, addr string) error
	// FindByAddress returns the identity owned by addr, ErrNotFound if none.
	FindByAddress(ctx context.Context, addr string) (*Identity, error)
	// FindByPair resolves an (emoji, username) pair case-insensitively.
	FindByPair(ctx context.Context, emoji, username string) (*Identity, error)
	// ExistsPair reports whether the pair is claimed by any address other
	// than excludeAddr (pass empty to exclude nobody).
	ExistsPair(ctx context.Context, emoji, username, excludeAddr string) (bool, error)
	// SearchByUsernamePrefix lists identities whose username starts with
	// prefix (case-insensitive), ordered by username ascending.
	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]Identity, error)
	// AppendHistory appends one history entry.
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	// HistoryByAddress lists entries for an address, most recent first.
	HistoryByAddress(ctx context.Context, addr string) ([]HistoryEntry, error)
}
