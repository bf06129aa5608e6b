package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"juicyid/internal/address"
	"juicyid/internal/events"
	identitymetrics "juicyid/internal/identity/metrics"
	dErrors "juicyid/pkg/domain-errors"
	"juicyid/pkg/platform/sentinel"
	"juicyid/pkg/platform/tx"
	"juicyid/pkg/requestcontext"
)

// Registry owns the address → (emoji, username) mapping and its history log.
// It is the sole writer of identity rows.
type Registry struct {
	store   Store
	format  Format
	events  *events.Publisher
	tx      tx.Runner
	logger  *slog.Logger
	metrics *identitymetrics.Metrics
	tracer  trace.Tracer
}

// Option configures optional Registry collaborators.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithFormat(f Format) Option {
	return func(r *Registry) { r.format = f }
}

func NewRegistry(store Store, publisher *events.Publisher, runner tx.Runner, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		format: DefaultFormat(),
		events: events.NewPublisher(events.NewMemorySink()),
		tx:     runner,
		logger: slog.Default(),
		tracer: otel.Tracer("juicyid/identity"),
	}
	if publisher != nil {
		r.events = publisher
	}
	if runner == nil {
		r.tx = tx.NewPassthrough()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Format exposes the injected validation rules so the mention parser and
// transport layer share one source of truth.
func (r *Registry) Format() Format {
	return r.format
}

// SetIdentity claims or re-claims the (emoji, username) pair for an address.
//
// Validation failures return CodeValidation; a pair claimed by another
// address returns CodeConflict, including races the availability pre-check
// missed: the storage unique constraint is the authoritative resolver and
// its violation is translated into the same conflict error.
func (r *Registry) SetIdentity(ctx context.Context, addr, emoji, username string) (*Identity, error) {
	ctx, span := r.tracer.Start(ctx, "identity.SetIdentity",
		trace.WithAttributes(attribute.String("identity.emoji", emoji)))
	defer span.End()

	addr = address.Normalize(addr)
	if err := r.format.ValidateEmoji(emoji); err != nil {
		return nil, err
	}
	if err := r.format.ValidateUsername(username); err != nil {
		return nil, err
	}

	taken, err := r.store.ExistsPair(ctx, emoji, username, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check availability")
	}
	if taken {
		r.metrics.RecordConflict()
		return nil, dErrors.New(dErrors.CodeConflict, "this emoji and username combination is already taken")
	}

	now := requestcontext.Now(ctx)
	var result *Identity
	change := events.ChangeCreated

	err = r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		prior, err := r.store.FindByAddress(txCtx, addr)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load current identity")
		}

		ident := Identity{
			Address:   addr,
			Emoji:     emoji,
			Username:  username,
			CreatedAt: now,
			UpdatedAt: now,
		}

		switch {
		case prior == nil:
			if err := r.store.AppendHistory(txCtx, HistoryEntry{
				Address:   addr,
				Emoji:     emoji,
				Username:  username,
				StartedAt: now,
				Change:    ChangeCreated,
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record history")
			}
		case prior.Emoji == emoji && prior.Username == username:
			// Re-claiming the identical pair changes nothing.
			result = prior
			return nil
		default:
			change = events.ChangeUpdated
			ident.CreatedAt = prior.CreatedAt
			ended := now
			if err := r.store.AppendHistory(txCtx, HistoryEntry{
				Address:   addr,
				Emoji:     prior.Emoji,
				Username:  prior.Username,
				StartedAt: prior.UpdatedAt,
				EndedAt:   &ended,
				Change:    ChangeUpdated,
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record history")
			}
		}

		if err := r.store.Upsert(txCtx, ident); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// A concurrent claim won the insert between pre-check and
				// write. Report the same outcome the pre-check would have.
				r.metrics.RecordConflict()
				return dErrors.New(dErrors.CodeConflict, "this emoji and username combination is already taken")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity")
		}

		if err := r.events.Emit(txCtx, events.IdentityChanged{
			Address:    addr,
			Emoji:      emoji,
			Username:   username,
			Change:     change,
			OccurredAt: now,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue identity event")
		}

		result = &ident
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result != nil && result.UpdatedAt.Equal(now) {
		r.metrics.RecordClaim(change)
		r.logger.InfoContext(ctx, "identity claimed",
			"address", addr,
			"change", change,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

// DeleteIdentity removes the identity owned by an address. Deleting an
// address without an identity is a no-op, not an error.
func (r *Registry) DeleteIdentity(ctx context.Context, addr string) error {
	ctx, span := r.tracer.Start(ctx, "identity.DeleteIdentity")
	defer span.End()

	addr = address.Normalize(addr)
	now := requestcontext.Now(ctx)

	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		prior, err := r.store.FindByAddress(txCtx, addr)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load current identity")
		}

		ended := now
		if err := r.store.AppendHistory(txCtx, HistoryEntry{
			Address:   addr,
			Emoji:     prior.Emoji,
			Username:  prior.Username,
			StartedAt: prior.UpdatedAt,
			EndedAt:   &ended,
			Change:    ChangeDeleted,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record history")
		}
		if err := r.store.Delete(txCtx, addr); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete identity")
		}
		if err := r.events.Emit(txCtx, events.IdentityChanged{
			Address:    addr,
			Change:     events.ChangeDeleted,
			OccurredAt: now,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue identity event")
		}

		r.metrics.RecordDeletion()
		return nil
	})
	return err
}

// ResolveIdentity returns the address owning an (emoji, username) pair, or
// empty if unclaimed. Username comparison is case-insensitive.
func (r *Registry) ResolveIdentity(ctx context.Context, emoji, username string) (string, error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveResolution("pair", time.Since(start).Seconds())
	}()

	ident, err := r.store.FindByPair(ctx, emoji, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve identity")
	}
	return ident.Address, nil
}

// IsIdentityAvailable reports whether a pair is claimable, excluding
// excludeAddr's own claim (pass empty to exclude nobody). Advisory only:
// the storage constraint remains the authoritative resolver at write time.
func (r *Registry) IsIdentityAvailable(ctx context.Context, emoji, username, excludeAddr string) (bool, error) {
	taken, err := r.store.ExistsPair(ctx, emoji, username, address.Normalize(excludeAddr))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check availability")
	}
	return !taken, nil
}

// GetIdentityByAddress returns the identity owned by an address, nil if none.
func (r *Registry) GetIdentityByAddress(ctx context.Context, addr string) (*Identity, error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveResolution("address", time.Since(start).Seconds())
	}()

	ident, err := r.store.FindByAddress(ctx, address.Normalize(addr))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return ident, nil
}

// GetIdentityHistory lists an address's history entries, most recent first.
func (r *Registry) GetIdentityHistory(ctx context.Context, addr string) ([]HistoryEntry, error) {
	entries, err := r.store.HistoryByAddress(ctx, address.Normalize(addr))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity history")
	}
	return entries, nil
}

// SearchIdentities lists identities whose username starts with prefix,
// ordered by username ascending.
func (r *Registry) SearchIdentities(ctx context.Context, prefix string, limit int) ([]Identity, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	idents, err := r.store.SearchByUsernamePrefix(ctx, prefix, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search identities")
	}
	return idents, nil
}
