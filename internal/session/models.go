package session

import (
	"time"

	"rollcall/pkg/domain"
)

// GracePeriod extends a session past its scheduled end so a student who hit
// submit at the bell is not rejected by clock skew.
const GracePeriod = 30 * time.Second

// AttendanceSession is one class meeting during which attendance can be marked.
type AttendanceSession struct {
	ID        domain.SessionID
	CourseID  domain.CourseID
	FacultyID domain.UserID
	StartTime time.Time
	EndTime   time.Time
	Active    bool
	CreatedAt time.Time
}

// OpenAt reports whether marking is currently allowed: the session is active,
// has started, and is at most GracePeriod past its end.
func (s AttendanceSession) OpenAt(now time.Time) bool {
	return s.Active && !now.Before(s.StartTime) && !now.After(s.EndTime.Add(GracePeriod))
}

// Enrollment ties a student to a course.
type Enrollment struct {
	StudentID domain.UserID
	CourseID  domain.CourseID
	Active    bool
}

// Campus is the geofence reference of the department owning a course.
type Campus struct {
	Lat          float64
	Lon          float64
	RadiusMeters float64
}
