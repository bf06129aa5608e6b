package link

import (
	"time"

	"github.com/google/uuid"
)

// LinkType records which authentication method produced a link.
type LinkType string

const (
	LinkTypeManual       LinkType = "manual"
	LinkTypeSmartAccount LinkType = "smart_account"
	LinkTypePasskey      LinkType = "passkey"
	LinkTypeWallet       LinkType = "wallet"
)

// Valid reports whether t is a known link type.
func (t LinkType) Valid() bool {
	switch t {
	case LinkTypeManual, LinkTypeSmartAccount, LinkTypePasskey, LinkTypeWallet:
		return true
	}
	return false
}

// LinkedAddress maps one linked address onto its primary. The graph is one
// hop deep by invariant: a linked address never appears as a primary, a
// primary never appears as linked, and each linked address appears in at
// most one row. Write-time validation plus the unique constraint on
// linked_address enforce this, which is what lets the resolver do a single
// lookup instead of a graph walk.
type LinkedAddress struct {
	ID             uuid.UUID
	PrimaryAddress string
	LinkedAddress  string
	LinkType       LinkType
	UserID         string
	CreatedAt      time.Time
}

// HistoryAction classifies a link history entry.
type HistoryAction string

const (
	ActionLinked   HistoryAction = "linked"
	ActionUnlinked HistoryAction = "unlinked"
)

// HistoryEntry records one link or unlink, including who performed it.
type HistoryEntry struct {
	PrimaryAddress string
	LinkedAddress  string
	LinkType       LinkType
	Action         HistoryAction
	PerformedAt    time.Time
	PerformedBy    string
}

// UserAddresses is the full address set behind one identity.
type UserAddresses struct {
	PrimaryAddress  string
	LinkedAddresses []LinkedAddress
}
