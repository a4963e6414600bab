// Package store provides user store implementations.
package store

import (
	"context"
	"strings"
	"sync"

	"rollcall/internal/auth"
	"rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

// InMemoryStore keeps users in maps keyed by id and lowercased email.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[domain.UserID]auth.User
	byEmail map[string]domain.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[domain.UserID]auth.User),
		byEmail: make(map[string]domain.UserID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, u auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return nil
}

func (s *InMemoryStore) GetByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return auth.User{}, sentinel.ErrNotFound
	}
	return s.byID[userID], nil
}

func (s *InMemoryStore) GetByID(_ context.Context, userID domain.UserID) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return auth.User{}, sentinel.ErrNotFound
	}
	return u, nil
}
