package biometric

import (
	"context"

	"rollcall/pkg/domain"
)

// Store persists encrypted templates. Implementations return
// sentinel.ErrNotFound when an identity has no template.
type Store interface {
	// Upsert replaces the identity's template wholesale.
	Upsert(ctx context.Context, tpl Template) error
	// Get returns the identity's template.
	Get(ctx context.Context, userID domain.UserID) (Template, error)
	// List returns every enrolled template.
	List(ctx context.Context) ([]Template, error)
}
