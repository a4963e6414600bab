// Package ratelimit implements a sliding-window attempt counter per
// (identity, action). Checking and recording are deliberately decoupled:
// IsLimited is a pure read, and only failure paths call RegisterAttempt, so
// legitimate rapid polling is never penalized.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
)

const (
	// MaxAttempts failures within Window block further attempts.
	MaxAttempts = 3
	// Window is the trailing interval considered by IsLimited.
	Window = 60 * time.Second
)

// WindowStore holds per-key attempt timestamps. Implementations must prune
// entries older than the cutoff before answering reads.
type WindowStore interface {
	Count(ctx context.Context, key string, cutoff time.Time) (int, error)
	Append(ctx context.Context, key string, at time.Time) error
	Oldest(ctx context.Context, key string, cutoff time.Time) (time.Time, bool, error)
}

type Limiter struct {
	store  WindowStore
	logger *slog.Logger
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func New(store WindowStore, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("window store is required")
	}
	l := &Limiter{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// IsLimited reports whether the identity has exhausted its attempts for the
// action. It does not record an attempt.
func (l *Limiter) IsLimited(ctx context.Context, userID id.UserID, action string) (bool, error) {
	now := requestcontext.Now(ctx)
	count, err := l.store.Count(ctx, key(userID, action), now.Add(-Window))
	if err != nil {
		return false, fmt.Errorf("count attempts: %w", err)
	}
	return count >= MaxAttempts, nil
}

// RegisterAttempt appends the current time to the identity's window. Callers
// invoke it on failed biometric checks, not on every request.
func (l *Limiter) RegisterAttempt(ctx context.Context, userID id.UserID, action string) error {
	now := requestcontext.Now(ctx)
	if err := l.store.Append(ctx, key(userID, action), now); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// RetryAfter returns how many whole seconds remain until the oldest surviving
// attempt leaves the window; 0 when the identity is not limited.
func (l *Limiter) RetryAfter(ctx context.Context, userID id.UserID, action string) (int, error) {
	now := requestcontext.Now(ctx)
	oldest, ok, err := l.store.Oldest(ctx, key(userID, action), now.Add(-Window))
	if err != nil {
		return 0, fmt.Errorf("oldest attempt: %w", err)
	}
	if !ok {
		return 0, nil
	}
	retry := int(Window.Seconds() - now.Sub(oldest).Seconds())
	return max(retry, 0), nil
}

// key joins identity and action, escaping the delimiter so user-controlled
// segments cannot collide with adjacent windows.
func key(userID id.UserID, action string) string {
	return userID.String() + ":" + strings.ReplaceAll(action, ":", "_")
}
