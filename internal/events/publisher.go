package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store appends events to the outbox. The postgres implementation joins the
// caller's transaction when one is carried in context, which is what makes
// the event post-commit: the row only becomes visible to the relay once the
// identity write commits.
type Store interface {
	Append(ctx context.Context, ev IdentityChanged) error
}

// Publisher is the writer-side API the registry uses.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit stamps and appends one event.
func (p *Publisher) Emit(ctx context.Context, ev IdentityChanged) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	return p.store.Append(ctx, ev)
}
