// Package session manages attendance sessions and course enrollment. Expired
// sessions are closed lazily: every OpenFor call may trigger a sweep, rate
// limited so the store is not hammered on every request.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/sentinel"
)

// sweepInterval is the minimum spacing between two auto-close sweeps.
const sweepInterval = 60 * time.Second

type Service struct {
	store  Store
	logger *slog.Logger

	sweepMu   sync.Mutex
	lastSweep time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Start opens a new session for a course.
func (s *Service) Start(ctx context.Context, courseID domain.CourseID, facultyID domain.UserID, startTime, endTime time.Time) (AttendanceSession, error) {
	if !endTime.After(startTime) {
		return AttendanceSession{}, fmt.Errorf("session end must be after start")
	}
	sess := AttendanceSession{
		ID:        domain.NewSessionID(),
		CourseID:  courseID,
		FacultyID: facultyID,
		StartTime: startTime,
		EndTime:   endTime,
		Active:    true,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.PutSession(ctx, sess); err != nil {
		return AttendanceSession{}, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

// End deactivates a session ahead of its scheduled end.
func (s *Service) End(ctx context.Context, sessionID domain.SessionID) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Active = false
	if err := s.store.PutSession(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// OpenFor returns the session if marking is allowed right now. A missing
// session surfaces sentinel.ErrNotFound; a closed or out-of-window session
// surfaces sentinel.ErrInvalidState.
func (s *Service) OpenFor(ctx context.Context, sessionID domain.SessionID) (AttendanceSession, error) {
	s.maybeSweep(ctx)

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return AttendanceSession{}, err
	}
	if !sess.OpenAt(requestcontext.Now(ctx)) {
		return AttendanceSession{}, sentinel.ErrInvalidState
	}
	return sess, nil
}

// IsEnrolled reports whether the student has an active enrollment in the course.
func (s *Service) IsEnrolled(ctx context.Context, studentID domain.UserID, courseID domain.CourseID) (bool, error) {
	return s.store.IsEnrolled(ctx, studentID, courseID)
}

// Enroll records an active enrollment.
func (s *Service) Enroll(ctx context.Context, studentID domain.UserID, courseID domain.CourseID) error {
	return s.store.PutEnrollment(ctx, Enrollment{StudentID: studentID, CourseID: courseID, Active: true})
}

// Campus returns the geofence reference for the course's department.
func (s *Service) Campus(ctx context.Context, courseID domain.CourseID) (Campus, error) {
	return s.store.Campus(ctx, courseID)
}

// Sweep closes active sessions more than GracePeriod past their end,
// regardless of the rate limit. The background worker calls this directly.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	cutoff := requestcontext.Now(ctx).Add(-GracePeriod)
	closed, err := s.store.CloseExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("close expired sessions: %w", err)
	}
	if closed > 0 {
		s.logger.InfoContext(ctx, "auto-closed expired sessions", "count", closed)
	}
	return closed, nil
}

// maybeSweep runs Sweep at most once per sweepInterval.
func (s *Service) maybeSweep(ctx context.Context) {
	now := requestcontext.Now(ctx)

	s.sweepMu.Lock()
	due := s.lastSweep.IsZero() || now.Sub(s.lastSweep) >= sweepInterval
	if due {
		s.lastSweep = now
	}
	s.sweepMu.Unlock()
	if !due {
		return
	}

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.WarnContext(ctx, "session sweep failed", "error", err)
	}
}
