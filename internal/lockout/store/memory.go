// Package store provides lockout store implementations.
package store

import (
	"context"
	"sync"

	"rollcall/internal/lockout"
	"rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

type key struct {
	userID   domain.UserID
	category lockout.Category
}

// InMemoryStore keeps lockout state in a map.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[key]lockout.State
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[key]lockout.State)}
}

func (s *InMemoryStore) Get(_ context.Context, userID domain.UserID, category lockout.Category) (lockout.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key{userID, category}]
	if !ok {
		return lockout.State{}, sentinel.ErrNotFound
	}
	return st, nil
}

func (s *InMemoryStore) Put(_ context.Context, st lockout.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key{st.UserID, st.Category}] = st
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID domain.UserID, category lockout.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key{userID, category})
	return nil
}
