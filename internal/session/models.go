package session

import "time"

// Credential is the normalized result of credential extraction: the address
// a request acts as, the registered user behind it when one exists, and
// whether the address is an anonymous pseudo-address.
type Credential struct {
	Address   string
	UserID    string
	Anonymous bool
}

// AccessMode selects what happens after the extraction chain runs. The
// chain itself (bearer token, then wallet session, then anonymous session)
// is identical in every mode.
type AccessMode string

const (
	// ModeStrict requires a non-anonymous credential.
	ModeStrict AccessMode = "strict"
	// ModeFlexible accepts any credential, anonymous included.
	ModeFlexible AccessMode = "flexible"
	// ModeOptional attaches whatever is found and never fails.
	ModeOptional AccessMode = "optional"
)

// WalletSession is an unexpired self-custody (SIWE) session row.
type WalletSession struct {
	Token         string
	WalletAddress string
	ExpiresAt     time.Time
}
