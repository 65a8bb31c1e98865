package directory

import (
	"context"
	"strings"
	"sync"

	"comply/pkg/platform/sentinel"
)

// InMemoryStore holds directory entries in memory for dev mode and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]*User)}
}

// Seed adds or replaces a user. Emails are case-insensitive.
func (s *InMemoryStore) Seed(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(user.Email)] = &user
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *user
	return &copied, nil
}
