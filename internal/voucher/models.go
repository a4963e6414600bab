package voucher

import (
	"time"

	"github.com/google/uuid"

	id "rollcall/pkg/domain"
)

// Voucher is a single-use, time-boxed credential proving that a specific
// identity was offered a specific attendance window. It is bound to
// (user, session) at issuance; redemption never trusts client-supplied
// bindings over the stored ones.
type Voucher struct {
	ID        uuid.UUID
	Token     string
	UserID    id.UserID
	SessionID id.SessionID
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// ExpiredAt reports whether the voucher's validity window has passed.
func (v Voucher) ExpiredAt(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// BoundTo reports whether the voucher was issued to the given identity and session.
func (v Voucher) BoundTo(userID id.UserID, sessionID id.SessionID) bool {
	return v.UserID == userID && v.SessionID == sessionID
}
