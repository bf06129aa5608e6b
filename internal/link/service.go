package link

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"juicyid/internal/address"
	"juicyid/internal/identity"
	linkmetrics "juicyid/internal/link/metrics"
	dErrors "juicyid/pkg/domain-errors"
	"juicyid/pkg/platform/sentinel"
	"juicyid/pkg/platform/tx"
	"juicyid/pkg/requestcontext"
)

// IdentityReader is the slice of the identity registry the link manager
// consults. It reads identity state but never writes it.
type IdentityReader interface {
	GetIdentityByAddress(ctx context.Context, addr string) (*identity.Identity, error)
}

// Manager owns the linkedAddress → primaryAddress graph. It is the sole
// writer of link rows.
type Manager struct {
	store      Store
	identities IdentityReader
	tx         tx.Runner
	logger     *slog.Logger
	metrics    *linkmetrics.Metrics
	tracer     trace.Tracer
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(metrics *linkmetrics.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func NewManager(store Store, identities IdentityReader, runner tx.Runner, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		identities: identities,
		tx:         runner,
		logger:     slog.Default(),
		tracer:     otel.Tracer("juicyid/link"),
	}
	if runner == nil {
		m.tx = tx.NewPassthrough()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LinkAddress attaches linked to primary. The validation sequence
// short-circuits on the first failure, in this order:
//
//  1. primary and linked must differ (case-insensitive)
//  2. primary must own an identity
//  3. linked must not already be linked anywhere
//  4. linked must not be a primary for someone else
//  5. primary must not itself be a linked address
//  6. linked must not own its own identity
//
// The pre-checks are advisory; a concurrent link that wins the insert
// surfaces as a storage conflict and is reported exactly like rule 3.
func (m *Manager) LinkAddress(ctx context.Context, primary, linked string, linkType LinkType, performedBy string) (*LinkedAddress, error) {
	ctx, span := m.tracer.Start(ctx, "link.LinkAddress",
		trace.WithAttributes(attribute.String("link.type", string(linkType))))
	defer span.End()

	primary = address.Normalize(primary)
	linked = address.Normalize(linked)
	performedBy = address.Normalize(performedBy)

	if !linkType.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown link type")
	}

	if primary == linked {
		m.metrics.RecordRejection("self_link")
		return nil, dErrors.New(dErrors.CodeBadRequest, "an address cannot be linked to itself")
	}

	primaryIdent, err := m.identities.GetIdentityByAddress(ctx, primary)
	if err != nil {
		return nil, err
	}
	if primaryIdent == nil {
		m.metrics.RecordRejection("primary_without_identity")
		return nil, dErrors.New(dErrors.CodeConflict, "primary address does not own an identity")
	}

	if _, err := m.store.FindByLinked(ctx, linked); err == nil {
		m.metrics.RecordRejection("already_linked")
		return nil, dErrors.New(dErrors.CodeConflict, "address is already linked to another account")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check link state")
	}

	linkedIsPrimary, err := m.store.ExistsAsPrimary(ctx, linked)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check link state")
	}
	if linkedIsPrimary {
		m.metrics.RecordRejection("linked_is_primary")
		return nil, dErrors.New(dErrors.CodeConflict, "address is a primary with links of its own")
	}

	if _, err := m.store.FindByLinked(ctx, primary); err == nil {
		m.metrics.RecordRejection("primary_is_linked")
		return nil, dErrors.New(dErrors.CodeConflict, "primary address is itself a linked address")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check link state")
	}

	linkedIdent, err := m.identities.GetIdentityByAddress(ctx, linked)
	if err != nil {
		return nil, err
	}
	if linkedIdent != nil {
		m.metrics.RecordRejection("linked_has_identity")
		return nil, dErrors.New(dErrors.CodeConflict, "address already has its own identity")
	}

	now := requestcontext.Now(ctx)
	row := LinkedAddress{
		ID:             uuid.New(),
		PrimaryAddress: primary,
		LinkedAddress:  linked,
		LinkType:       linkType,
		CreatedAt:      now,
	}
	if userID := requestcontext.UserID(ctx); userID != "" {
		row.UserID = userID
	}

	err = m.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := m.store.Create(txCtx, row); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// A concurrent link won the insert. Same outcome as rule 3.
				m.metrics.RecordRejection("already_linked")
				return dErrors.New(dErrors.CodeConflict, "address is already linked to another account")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create link")
		}
		if err := m.store.AppendHistory(txCtx, HistoryEntry{
			PrimaryAddress: primary,
			LinkedAddress:  linked,
			LinkType:       linkType,
			Action:         ActionLinked,
			PerformedAt:    now,
			PerformedBy:    performedBy,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record link history")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.metrics.RecordLinked(string(linkType))
	m.logger.InfoContext(ctx, "address linked",
		"primary", primary,
		"linked", linked,
		"link_type", linkType,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &row, nil
}

// UnlinkAddress removes the link for linkedAddr. It returns false, without
// error, when no link exists or when performedBy owns neither side. Both
// are expected caller mistakes, not faults.
func (m *Manager) UnlinkAddress(ctx context.Context, linkedAddr, performedBy string) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "link.UnlinkAddress")
	defer span.End()

	linkedAddr = address.Normalize(linkedAddr)
	performedBy = address.Normalize(performedBy)

	row, err := m.store.FindByLinked(ctx, linkedAddr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load link")
	}

	if !address.Equal(performedBy, row.PrimaryAddress) && !address.Equal(performedBy, row.LinkedAddress) {
		m.metrics.RecordUnlinkDenied()
		m.logger.WarnContext(ctx, "unlink denied",
			"linked", linkedAddr,
			"performed_by", performedBy,
			"request_id", requestcontext.RequestID(ctx),
		)
		return false, nil
	}

	now := requestcontext.Now(ctx)
	err = m.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := m.store.AppendHistory(txCtx, HistoryEntry{
			PrimaryAddress: row.PrimaryAddress,
			LinkedAddress:  row.LinkedAddress,
			LinkType:       row.LinkType,
			Action:         ActionUnlinked,
			PerformedAt:    now,
			PerformedBy:    performedBy,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record link history")
		}
		if err := m.store.Delete(txCtx, linkedAddr); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete link")
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	m.metrics.RecordUnlinked()
	return true, nil
}

// GetPrimaryAddress returns the primary for a linked address, or empty if
// addr is not a linked address (it may be a primary or simply unlinked).
func (m *Manager) GetPrimaryAddress(ctx context.Context, addr string) (string, error) {
	row, err := m.store.FindByLinked(ctx, address.Normalize(addr))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve primary")
	}
	return row.PrimaryAddress, nil
}

// GetLinkedAddresses lists a primary's links in insertion order.
func (m *Manager) GetLinkedAddresses(ctx context.Context, primary string) ([]LinkedAddress, error) {
	links, err := m.store.ListByPrimary(ctx, address.Normalize(primary))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list links")
	}
	return links, nil
}

// CanBeLinkTarget reports whether addr could currently be linked to some
// primary, with a caller-facing reason when it cannot. Advisory only: it
// takes no locks and the answer can be stale by the time a link is written.
func (m *Manager) CanBeLinkTarget(ctx context.Context, addr string) (bool, string, error) {
	addr = address.Normalize(addr)

	if _, err := m.store.FindByLinked(ctx, addr); err == nil {
		return false, "address is already linked to another account", nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check link state")
	}

	isPrimary, err := m.store.ExistsAsPrimary(ctx, addr)
	if err != nil {
		return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check link state")
	}
	if isPrimary {
		return false, "address is a primary with links of its own", nil
	}

	ident, err := m.identities.GetIdentityByAddress(ctx, addr)
	if err != nil {
		return false, "", err
	}
	if ident != nil {
		return false, "address already has its own identity", nil
	}
	return true, "", nil
}

// CanBePrimary reports whether addr could currently act as a primary, with a
// caller-facing reason when it cannot. Advisory only, like CanBeLinkTarget.
func (m *Manager) CanBePrimary(ctx context.Context, addr string) (bool, string, error) {
	addr = address.Normalize(addr)

	ident, err := m.identities.GetIdentityByAddress(ctx, addr)
	if err != nil {
		return false, "", err
	}
	if ident == nil {
		return false, "primary address does not own an identity", nil
	}

	if _, err := m.store.FindByLinked(ctx, addr); err == nil {
		return false, "primary address is itself a linked address", nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check link state")
	}
	return true, "", nil
}

// GetLinkHistory lists link history where addr appears on either side,
// newest first.
func (m *Manager) GetLinkHistory(ctx context.Context, addr string) ([]HistoryEntry, error) {
	entries, err := m.store.HistoryByAddress(ctx, address.Normalize(addr))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load link history")
	}
	return entries, nil
}

// GetAllUserAddresses returns the full address set behind addr's identity.
// A linked address resolves to its primary first, so both sides of a link
// get the same answer.
func (m *Manager) GetAllUserAddresses(ctx context.Context, addr string) (*UserAddresses, error) {
	addr = address.Normalize(addr)

	primary := addr
	if p, err := m.GetPrimaryAddress(ctx, addr); err != nil {
		return nil, err
	} else if p != "" {
		primary = p
	}

	links, err := m.GetLinkedAddresses(ctx, primary)
	if err != nil {
		return nil, err
	}
	return &UserAddresses{PrimaryAddress: primary, LinkedAddresses: links}, nil
}
