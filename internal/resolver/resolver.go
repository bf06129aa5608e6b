// Package resolver composes the link graph with the identity registry to
// produce the canonical identity for any address.
package resolver

import (
	"context"

	"juicyid/internal/identity"
)

// PrimaryLookup is the slice of the link manager the resolver needs.
type PrimaryLookup interface {
	GetPrimaryAddress(ctx context.Context, addr string) (string, error)
}

// IdentityLookup is the slice of the identity registry the resolver needs.
type IdentityLookup interface {
	GetIdentityByAddress(ctx context.Context, addr string) (*identity.Identity, error)
}

// Resolver maps any address onto the address that owns its identity.
type Resolver struct {
	links      PrimaryLookup
	identities IdentityLookup
}

func New(links PrimaryLookup, identities IdentityLookup) *Resolver {
	return &Resolver{links: links, identities: identities}
}

// ResolveIdentityAddress returns the primary for a linked address, or the
// address unchanged otherwise.
//
// This is deliberately a single lookup, not a graph walk: the link manager
// rejects chains at write time (a linked address can never be a primary and
// vice versa), so link depth is always exactly one hop. Do not "fix" this
// into a recursive walk.
func (r *Resolver) ResolveIdentityAddress(ctx context.Context, addr string) (string, error) {
	primary, err := r.links.GetPrimaryAddress(ctx, addr)
	if err != nil {
		return "", err
	}
	if primary != "" {
		return primary, nil
	}
	return addr, nil
}

// GetIdentityByAddressResolved returns the identity addr displays as: its
// own, or its primary's if linked. Nil if neither owns one.
func (r *Resolver) GetIdentityByAddressResolved(ctx context.Context, addr string) (*identity.Identity, error) {
	owner, err := r.ResolveIdentityAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	return r.identities.GetIdentityByAddress(ctx, owner)
}
