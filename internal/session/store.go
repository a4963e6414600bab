package session

import (
	"context"
	"time"

	"rollcall/pkg/domain"
)

// Store persists sessions, enrollments, and campus references. Lookups return
// sentinel.ErrNotFound for missing rows.
type Store interface {
	GetSession(ctx context.Context, sessionID domain.SessionID) (AttendanceSession, error)
	PutSession(ctx context.Context, s AttendanceSession) error
	// CloseExpired deactivates active sessions that ended before the cutoff
	// and returns how many were closed.
	CloseExpired(ctx context.Context, endedBefore time.Time) (int64, error)

	IsEnrolled(ctx context.Context, studentID domain.UserID, courseID domain.CourseID) (bool, error)
	PutEnrollment(ctx context.Context, e Enrollment) error

	// Campus returns the geofence reference for the course's department.
	Campus(ctx context.Context, courseID domain.CourseID) (Campus, error)
}
