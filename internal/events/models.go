// Package events implements the IdentityChanged domain event through a
// transactional outbox. The registry appends the event in the same
// transaction as the identity write; a background relay publishes committed
// rows to Kafka. Presentation collaborators (chat presence, notifications)
// consume the topic, so a down notification path never fails an identity
// write.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Change values mirror the identity history change types.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// IdentityChanged announces that an address claimed, changed, or dropped its
// emoji+username.
type IdentityChanged struct {
	ID         uuid.UUID `json:"id"`
	Address    string    `json:"address"`
	Emoji      string    `json:"emoji"`
	Username   string    `json:"username"`
	Change     string    `json:"change"`
	OccurredAt time.Time `json:"occurred_at"`
}
