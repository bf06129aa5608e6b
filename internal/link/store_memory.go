package link

import (
	"context"
	"sync"

	"juicyid/pkg/platform/sentinel"
)

// InMemoryStore is the test and development implementation of Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	byLinked map[string]LinkedAddress
	history  []HistoryEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byLinked: make(map[string]LinkedAddress),
	}
}

func (s *InMemoryStore) Create(_ context.Context, link LinkedAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byLinked[link.LinkedAddress]; ok {
		return sentinel.ErrConflict
	}
	s.byLinked[link.LinkedAddress] = link
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, linkedAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byLinked[linkedAddr]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byLinked, linkedAddr)
	return nil
}

func (s *InMemoryStore) FindByLinked(_ context.Context, linkedAddr string) (*LinkedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.byLinked[linkedAddr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &link, nil
}

func (s *InMemoryStore) ListByPrimary(_ context.Context, primaryAddr string) ([]LinkedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []LinkedAddress
	for _, link := range s.byLinked {
		if link.PrimaryAddress == primaryAddr {
			out = append(out, link)
		}
	}
	// map iteration is unordered; restore insertion order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (s *InMemoryStore) ExistsAsPrimary(_ context.Context, addr string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.byLinked {
		if link.PrimaryAddress == addr {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) AppendHistory(_ context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func (s *InMemoryStore) HistoryByAddress(_ context.Context, addr string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []HistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		entry := s.history[i]
		if entry.PrimaryAddress == addr || entry.LinkedAddress == addr {
			out = append(out, entry)
		}
	}
	return out, nil
}
