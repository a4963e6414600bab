package lockout

import (
	"context"

	"rollcall/pkg/domain"
)

// Store persists per-category lockout state. Get returns sentinel.ErrNotFound
// when the identity has no recorded state in the category.
type Store interface {
	Get(ctx context.Context, userID domain.UserID, category Category) (State, error)
	Put(ctx context.Context, st State) error
	Delete(ctx context.Context, userID domain.UserID, category Category) error
}
