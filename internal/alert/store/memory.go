// Package store provides security alert store implementations.
package store

import (
	"context"
	"sync"

	"rollcall/internal/alert"
)

// InMemoryStore keeps alerts in insertion order.
type InMemoryStore struct {
	mu     sync.RWMutex
	alerts []alert.SecurityAlert
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, a alert.SecurityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]alert.SecurityAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]alert.SecurityAlert, 0, limit)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}
