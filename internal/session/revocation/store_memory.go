package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is the single-process revocation list for dev mode and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{revoked: make(map[string]time.Time)}
}

func (s *InMemoryStore) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[sessionID] = time.Now().Add(ttl)
	return nil
}

func (s *InMemoryStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	expiry, ok := s.revoked[sessionID]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		s.mu.Lock()
		delete(s.revoked, sessionID)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}
