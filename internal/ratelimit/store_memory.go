package ratelimit

import (
	"context"
	"sync"
	"time"
)

// maxTrackedKeys bounds the in-memory window map. Above it the whole map is
// cleared: an availability/precision trade-off that keeps hostile traffic from
// growing process memory without bound. Losing windows degrades to "no recent
// history", never to an unsafe accept.
const maxTrackedKeys = 1000

// InMemoryWindowStore implements WindowStore with per-key timestamp slices.
// Recreatable process-local state; losing it on restart is acceptable.
type InMemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewInMemoryWindowStore() *InMemoryWindowStore {
	return &InMemoryWindowStore{windows: make(map[string][]time.Time)}
}

func (s *InMemoryWindowStore) Count(ctx context.Context, key string, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(key, cutoff)
	return len(s.windows[key]), nil
}

func (s *InMemoryWindowStore) Append(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.windows) > maxTrackedKeys {
		s.windows = make(map[string][]time.Time)
	}
	s.windows[key] = append(s.windows[key], at)
	return nil
}

func (s *InMemoryWindowStore) Oldest(ctx context.Context, key string, cutoff time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(key, cutoff)
	window := s.windows[key]
	if len(window) == 0 {
		return time.Time{}, false, nil
	}
	oldest := window[0]
	for _, ts := range window[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}
	return oldest, true, nil
}

// pruneLocked drops entries at or before the cutoff. Must hold s.mu.
func (s *InMemoryWindowStore) pruneLocked(key string, cutoff time.Time) {
	window := s.windows[key]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(s.windows, key)
		return
	}
	s.windows[key] = kept
}
