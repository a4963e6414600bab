package alert

import (
	"time"

	"github.com/google/uuid"

	"rollcall/pkg/domain"
)

// SecurityAlert is a persisted record of a threat-threshold crossing. The
// details map carries whatever context the failure path had on hand, such as
// best similarity or measured distance.
type SecurityAlert struct {
	ID      uuid.UUID
	UserID  domain.UserID
	Event   string
	Score   int
	Details map[string]any
	// Resolved starts false; only an admin action flips it.
	Resolved  bool
	CreatedAt time.Time
}
