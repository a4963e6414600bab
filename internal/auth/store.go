package auth

import (
	"context"

	"rollcall/pkg/domain"
)

// UserStore persists accounts. Lookups return sentinel.ErrNotFound for
// missing users.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, userID domain.UserID) (User, error)
}
