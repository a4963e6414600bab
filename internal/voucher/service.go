// Package voucher issues and redeems single-use attendance vouchers.
package voucher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/secrets"
	"rollcall/pkg/sentinel"

	"github.com/google/uuid"
)

// DefaultTTL is the validity window of a freshly issued voucher.
const DefaultTTL = 120 * time.Second

type Service struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("voucher store is required")
	}
	svc := &Service{store: store, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue creates a voucher bound to (userID, sessionID) and returns its opaque
// token. Expired vouchers are purged opportunistically first so the table
// never accumulates garbage between issuances.
func (s *Service) Issue(ctx context.Context, userID id.UserID, sessionID id.SessionID) (string, error) {
	now := requestcontext.Now(ctx)

	if purged, err := s.store.PurgeExpired(ctx, now); err != nil {
		// Purge failure is not fatal to issuance; the voucher itself is still valid.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "voucher purge failed", "error", err)
		}
	} else if purged > 0 && s.logger != nil {
		s.logger.DebugContext(ctx, "purged expired vouchers", "count", purged)
	}

	token, err := secrets.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("generate voucher token: %w", err)
	}

	v := Voucher{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		SessionID: sessionID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, v); err != nil {
		return "", fmt.Errorf("persist voucher: %w", err)
	}

	return token, nil
}

// Redeem consumes the voucher identified by token, exactly once. Under any
// number of concurrent calls on the same token, at most one returns nil; the
// losers observe sentinel.ErrAlreadyUsed.
//
// Failure modes:
//   - sentinel.ErrNotFound: no voucher matches the token
//   - sentinel.ErrAlreadyUsed: consumed flag already set
//   - sentinel.ErrExpired: past expiry; the voucher is marked consumed as a
//     side effect so the same token cannot report Expired twice
//   - sentinel.ErrMismatch: bound identity or session differs from the claim
func (s *Service) Redeem(ctx context.Context, token string, userID id.UserID, sessionID id.SessionID) error {
	return s.store.WithTokenLock(ctx, token, func(r Redemption) error {
		v, ok := r.Voucher()
		if !ok {
			return sentinel.ErrNotFound
		}
		if v.Used {
			return sentinel.ErrAlreadyUsed
		}
		now := requestcontext.Now(ctx)
		if v.ExpiredAt(now) {
			if err := r.MarkUsed(ctx); err != nil {
				return fmt.Errorf("consume expired voucher: %w", err)
			}
			return sentinel.ErrExpired
		}
		if !v.BoundTo(userID, sessionID) {
			return sentinel.ErrMismatch
		}
		return r.MarkUsed(ctx)
	})
}
