// Package store provides template store implementations.
package store

import (
	"context"
	"sync"

	"rollcall/internal/biometric"
	"rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

// InMemoryStore keeps templates in a map. Used in tests and single-node
// deployments without Postgres.
type InMemoryStore struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]biometric.Template
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byUser: make(map[domain.UserID]biometric.Template)}
}

func (s *InMemoryStore) Upsert(_ context.Context, tpl biometric.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[tpl.UserID] = tpl
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, userID domain.UserID) (biometric.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.byUser[userID]
	if !ok {
		return biometric.Template{}, sentinel.ErrNotFound
	}
	return tpl, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]biometric.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]biometric.Template, 0, len(s.byUser))
	for _, tpl := range s.byUser {
		out = append(out, tpl)
	}
	return out, nil
}
