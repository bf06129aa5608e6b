package store

import (
	"context"
	"sync"
	"time"

	"juicyid/pkg/platform/sentinel"
)

type memorySession struct {
	walletAddress string
	expiresAt     time.Time
}

// InMemoryStore is the test implementation of WalletSessionStore.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]memorySession)}
}

func (s *InMemoryStore) Save(_ context.Context, token, walletAddress string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memorySession{walletAddress: walletAddress, expiresAt: expiresAt}
	return nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	if time.Now().After(sess.expiresAt) {
		return "", sentinel.ErrExpired
	}
	return sess.walletAddress, nil
}

func (s *InMemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
