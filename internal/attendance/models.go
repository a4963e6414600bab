package attendance

import (
	"time"

	"github.com/google/uuid"

	"rollcall/pkg/domain"
)

// Method tags every record with the checks that admitted it, so records
// written under a future policy remain distinguishable.
const Method = "face+geo+token+liveness"

// AttendanceRecord is one successful mark. At most one exists per
// (student, session).
type AttendanceRecord struct {
	ID             uuid.UUID
	StudentID      domain.UserID
	SessionID      domain.SessionID
	MarkedAt       time.Time
	Similarity     float64
	DistanceMeters float64
	IPAddress      string
	Method         string
}
