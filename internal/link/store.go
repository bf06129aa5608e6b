package link

import "context"

// Store persists the linked-address graph and its history log. The link
// manager is the sole writer.
//
// Create returns sentinel.ErrConflict when the unique constraint on
// linked_address rejects the row; that constraint is the authoritative
// resolver for races the manager's pre-checks did not catch.
type Store interface {
	// Create inserts a link row.
	Create(ctx context.Context, link LinkedAddress) error
	// Delete removes the row for a linked address, ErrNotFound if none.
	Delete(ctx context.Context, linkedAddr string) error
	// FindByLinked returns the row where linkedAddr is the linked side,
	// ErrNotFound if it is not linked.
	FindByLinked(ctx context.Context, linkedAddr string) (*LinkedAddress, error)
	// ListByPrimary lists a primary's links in insertion order.
	ListByPrimary(ctx context.Context, primaryAddr string) ([]LinkedAddress, error)
	// ExistsAsPrimary reports whether addr is the primary side of any row.
	ExistsAsPrimary(ctx context.Context, addr string) (bool, error)
	// AppendHistory appends one history entry.
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	// HistoryByAddress lists entries where addr appears on either side,
	// newest first.
	HistoryByAddress(ctx context.Context, addr string) ([]HistoryEntry, error)
}
