package alert

import "context"

// Store persists security alerts.
type Store interface {
	Insert(ctx context.Context, a SecurityAlert) error
	// ListRecent returns alerts newest first, up to limit.
	ListRecent(ctx context.Context, limit int) ([]SecurityAlert, error)
}
