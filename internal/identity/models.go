package identity

import (
	"regexp"
	"strings"
	"time"

	dErrors "juicyid/pkg/domain-errors"
)

// Identity is the unique (emoji, username) pair claimed by an address.
// Address is stored normalized (lowercase) and acts as the primary key;
// uniqueness of (emoji, lowercase username) is the second invariant.
type Identity struct {
	Address   string
	Emoji     string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChangeType classifies a history entry.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// HistoryEntry records one tenure of a claimed (emoji, username) value for an
// address. Entries are append-only. A created entry opens a tenure (EndedAt
// nil); updated and deleted entries close the prior tenure, so per address
// the intervals never overlap.
type HistoryEntry struct {
	Address   string
	Emoji     string
	Username  string
	StartedAt time.Time
	EndedAt   *time.Time
	Change    ChangeType
}

// Format holds the validation rules for claimable identities. It is injected
// into the registry (and the mention parser) rather than read from package
// globals, so deployments can vary the emoji set without touching call sites.
type Format struct {
	Emojis          []string
	UsernamePattern *regexp.Regexp

	emojiSet map[string]struct{}
}

// usernameRule: 3-20 chars, starts with a letter, letters/digits/underscore.
var usernameRule = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,19}$`)

// defaultEmojis is the claimable symbol set.
var defaultEmojis = []string{
	"🍊", "🍋", "🍇", "🍉", "🍓", "🍒", "🍍", "🥭", "🍎", "🍌",
	"🍑", "🥝", "🫐", "🍈", "🍐",
}

// DefaultFormat returns the stock format rules.
func DefaultFormat() Format {
	return NewFormat(defaultEmojis, usernameRule)
}

// NewFormat builds format rules from an explicit emoji set and username rule.
func NewFormat(emojis []string, pattern *regexp.Regexp) Format {
	set := make(map[string]struct{}, len(emojis))
	for _, e := range emojis {
		set[e] = struct{}{}
	}
	return Format{Emojis: emojis, UsernamePattern: pattern, emojiSet: set}
}

// ValidateEmoji rejects symbols outside the allowed set.
func (f Format) ValidateEmoji(emoji string) error {
	if _, ok := f.emojiSet[emoji]; !ok {
		return dErrors.New(dErrors.CodeValidation, "emoji is not in the allowed set")
	}
	return nil
}

// ValidateUsername rejects usernames violating the format rule.
func (f Format) ValidateUsername(username string) error {
	if !f.UsernamePattern.MatchString(username) {
		return dErrors.New(dErrors.CodeValidation,
			"username must be 3-20 characters, start with a letter, and contain only letters, digits, and underscores")
	}
	return nil
}

// Key returns the case-insensitive uniqueness key for an (emoji, username)
// pair. Availability, resolution, and the storage unique index all use it.
func Key(emoji, username string) string {
	return emoji + strings.ToLower(username)
}
