package lockout

import (
	"time"

	"rollcall/pkg/domain"
)

// Category separates the two failure modes that can suspend an identity.
// Their counters and locks never interact: hammering a password does not
// shorten the runway for face-spoof attempts, and vice versa.
type Category string

const (
	// CategoryCredential counts failed password attempts.
	CategoryCredential Category = "credential"
	// CategoryBiometric counts biometric abuse escalations.
	CategoryBiometric Category = "biometric"
)

// State is one identity's standing in one category. A zero or past
// LockedUntil means unlocked.
type State struct {
	UserID      domain.UserID
	Category    Category
	Failures    int
	LockedUntil time.Time
}

// LockedAt reports whether the state holds an active lock at the given time.
func (st State) LockedAt(now time.Time) bool {
	return st.LockedUntil.After(now)
}
