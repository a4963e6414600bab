// Package lockout suspends identities after repeated failures, with
// independent credential and biometric categories. Locks are self-expiring:
// nothing sweeps them, IsLocked simply stops honoring a lock once its window
// has passed and clears the stale row on sight.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/sentinel"
)

// policy is the threshold and lock window for one category.
type policy struct {
	threshold int
	duration  time.Duration
}

var policies = map[Category]policy{
	CategoryCredential: {threshold: 8, duration: 15 * time.Minute},
	CategoryBiometric:  {threshold: 3, duration: 10 * time.Minute},
}

// Status is the answer to "may this identity proceed".
type Status struct {
	Locked bool
	// Until is the end of the active lock window, zero when unlocked.
	Until time.Time
	// Category names the category holding the lock, empty when unlocked.
	Category Category
}

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("lockout store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IsLocked reports whether any category currently suspends the identity.
// Expired locks are deleted as they are observed.
func (s *Service) IsLocked(ctx context.Context, userID domain.UserID) (Status, error) {
	now := requestcontext.Now(ctx)
	for _, category := range []Category{CategoryCredential, CategoryBiometric} {
		st, err := s.store.Get(ctx, userID, category)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return Status{}, fmt.Errorf("load lockout state: %w", err)
		}
		if st.LockedAt(now) {
			return Status{Locked: true, Until: st.LockedUntil, Category: category}, nil
		}
		if !st.LockedUntil.IsZero() {
			// Lock has lapsed; drop the row so the identity starts clean.
			if err := s.store.Delete(ctx, userID, category); err != nil {
				return Status{}, fmt.Errorf("clear expired lockout: %w", err)
			}
		}
	}
	return Status{}, nil
}

// RecordFailure counts one failure in the category. Crossing the category's
// threshold sets the lock window and resets the counter, so the next run of
// failures starts from zero after the lock expires.
func (s *Service) RecordFailure(ctx context.Context, userID domain.UserID, category Category) (Status, error) {
	pol, ok := policies[category]
	if !ok {
		return Status{}, fmt.Errorf("unknown lockout category %q", category)
	}
	now := requestcontext.Now(ctx)

	st, err := s.store.Get(ctx, userID, category)
	if errors.Is(err, sentinel.ErrNotFound) {
		st = State{UserID: userID, Category: category}
	} else if err != nil {
		return Status{}, fmt.Errorf("load lockout state: %w", err)
	}

	if st.LockedAt(now) {
		return Status{Locked: true, Until: st.LockedUntil, Category: category}, nil
	}
	if !st.LockedUntil.IsZero() {
		// Previous lock lapsed without being observed by IsLocked.
		st.Failures = 0
		st.LockedUntil = time.Time{}
	}

	st.Failures++
	if st.Failures >= pol.threshold {
		st.Failures = 0
		st.LockedUntil = now.Add(pol.duration)
		s.logger.WarnContext(ctx, "identity locked out",
			"user_id", userID, "category", category, "until", st.LockedUntil)
	}
	if err := s.store.Put(ctx, st); err != nil {
		return Status{}, fmt.Errorf("persist lockout state: %w", err)
	}

	if st.LockedUntil.IsZero() {
		return Status{}, nil
	}
	return Status{Locked: true, Until: st.LockedUntil, Category: category}, nil
}

// ResetCredential clears the credential counter, called on successful login.
func (s *Service) ResetCredential(ctx context.Context, userID domain.UserID) error {
	return s.reset(ctx, userID, CategoryCredential)
}

// ResetBiometric clears the biometric counter, called on successful
// re-enrollment. The credential category is untouched.
func (s *Service) ResetBiometric(ctx context.Context, userID domain.UserID) error {
	return s.reset(ctx, userID, CategoryBiometric)
}

func (s *Service) reset(ctx context.Context, userID domain.UserID, category Category) error {
	if err := s.store.Delete(ctx, userID, category); err != nil {
		return fmt.Errorf("reset %s lockout: %w", category, err)
	}
	return nil
}
