package voucher

import (
	"context"
	"time"
)

// Redemption is the view of a voucher row while its exclusive lock is held.
type Redemption interface {
	// Voucher returns the locked voucher; ok is false when no row matched the token.
	Voucher() (Voucher, bool)
	// MarkUsed sets the consumed flag on the locked voucher.
	MarkUsed(ctx context.Context) error
}

// Store is pure I/O; redemption rules live in the service.
type Store interface {
	Create(ctx context.Context, v Voucher) error

	// PurgeExpired deletes vouchers whose expiry is before the cutoff and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)

	// WithTokenLock runs fn while holding an exclusive lock on the voucher
	// matching token. This is the pipeline's sole hard synchronization point:
	// the lock is scoped to one voucher and held across the whole
	// check-then-mark sequence.
	//
	// Mutations made through the Redemption are committed even when fn returns
	// a domain error: an expired voucher must stay consumed although the
	// caller sees a failure. Only storage errors abort the transaction.
	WithTokenLock(ctx context.Context, token string, fn func(r Redemption) error) error
}
