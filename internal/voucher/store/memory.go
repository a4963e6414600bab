package store

import (
	"context"
	"sync"
	"time"

	"rollcall/internal/voucher"
)

// InMemoryStore keeps vouchers in a map. MVP for single-process deployments
// and tests; production uses the Postgres store.
//
// One mutex covers all tokens. That serializes redemptions across unrelated
// vouchers, which is acceptable here: the critical section is a handful of map
// operations and correctness only demands exclusivity per token.
type InMemoryStore struct {
	mu      sync.Mutex
	byToken map[string]*voucher.Voucher
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byToken: make(map[string]*voucher.Voucher)}
}

func (s *InMemoryStore) Create(ctx context.Context, v voucher.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := v
	s.byToken[v.Token] = &cp
	return nil
}

func (s *InMemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for token, v := range s.byToken {
		if v.ExpiresAt.Before(before) {
			delete(s.byToken, token)
			purged++
		}
	}
	return purged, nil
}

func (s *InMemoryStore) WithTokenLock(ctx context.Context, token string, fn func(r voucher.Redemption) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memRedemption{voucher: s.byToken[token]})
}

type memRedemption struct {
	voucher *voucher.Voucher
}

func (r *memRedemption) Voucher() (voucher.Voucher, bool) {
	if r.voucher == nil {
		return voucher.Voucher{}, false
	}
	return *r.voucher, true
}

func (r *memRedemption) MarkUsed(ctx context.Context) error {
	r.voucher.Used = true
	return nil
}
