package events

import (
	"context"
	"sync"
)

// MemorySink collects events in memory for unit tests.
type MemorySink struct {
	mu     sync.Mutex
	events []IdentityChanged
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, ev IdentityChanged) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *MemorySink) Events() []IdentityChanged {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]IdentityChanged, len(s.events))
	copy(out, s.events)
	return out
}
