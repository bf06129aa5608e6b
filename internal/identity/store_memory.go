package identity

import (
	"context"
	"sort"
	"strings"
	"sync"

	"juicyid/pkg/platform/sentinel"
)

// InMemoryStore is the test and development implementation of Store. It
// enforces the same uniqueness invariants the postgres schema does.
type InMemoryStore struct {
	mu        sync.RWMutex
	byAddress map[string]Identity
	byPair    map[string]string // Key(emoji, username) → address
	history   map[string][]HistoryEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byAddress: make(map[string]Identity),
		byPair:    make(map[string]string),
		history:   make(map[string][]HistoryEntry),
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, ident Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(ident.Emoji, ident.Username)
	if owner, ok := s.byPair[key]; ok && owner != ident.Address {
		return sentinel.ErrConflict
	}

	if prior, ok := s.byAddress[ident.Address]; ok {
		delete(s.byPair, Key(prior.Emoji, prior.Username))
	}
	s.byAddress[ident.Address] = ident
	s.byPair[key] = ident.Address
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byAddress[addr]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byAddress, addr)
	delete(s.byPair, Key(ident.Emoji, ident.Username))
	return nil
}

func (s *InMemoryStore) FindByAddress(_ context.Context, addr string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.byAddress[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &ident, nil
}

func (s *InMemoryStore) FindByPair(_ context.Context, emoji, username string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, ok := s.byPair[Key(emoji, username)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	ident := s.byAddress[addr]
	return &ident, nil
}

func (s *InMemoryStore) ExistsPair(_ context.Context, emoji, username, excludeAddr string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, ok := s.byPair[Key(emoji, username)]
	if !ok {
		return false, nil
	}
	return addr != excludeAddr, nil
}

func (s *InMemoryStore) SearchByUsernamePrefix(_ context.Context, prefix string, limit int) ([]Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowered := strings.ToLower(prefix)
	var out []Identity
	for _, ident := range s.byAddress {
		if strings.HasPrefix(strings.ToLower(ident.Username), lowered) {
			out = append(out, ident)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AppendHistory(_ context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.Address] = append(s.history[entry.Address], entry)
	return nil
}

func (s *InMemoryStore) HistoryByAddress(_ context.Context, addr string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[addr]
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	// Append order is chronological; callers get most recent first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
