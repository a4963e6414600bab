package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/session"
	"rollcall/internal/session/store"
	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/sentinel"
)

type ServiceSuite struct {
	suite.Suite

	store   *store.InMemoryStore
	svc     *session.Service
	course  id.CourseID
	faculty id.UserID
	t0      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	svc, err := session.New(s.store)
	s.Require().NoError(err)
	s.svc = svc
	s.course = id.NewCourseID()
	s.faculty = id.NewUserID()
	s.t0 = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(offset))
}

// startHourSession opens a session running from t0 to t0+1h.
func (s *ServiceSuite) startHourSession() session.AttendanceSession {
	sess, err := s.svc.Start(s.at(0), s.course, s.faculty, s.t0, s.t0.Add(time.Hour))
	s.Require().NoError(err)
	return sess
}

func (s *ServiceSuite) TestOpenFor() {
	sess := s.startHourSession()

	s.Run("open during the scheduled window", func() {
		got, err := s.svc.OpenFor(s.at(30*time.Minute), sess.ID)
		s.Require().NoError(err)
		s.Equal(sess.ID, got.ID)
	})

	s.Run("closed before start", func() {
		early, err := s.svc.Start(s.at(0), s.course, s.faculty, s.t0.Add(2*time.Hour), s.t0.Add(3*time.Hour))
		s.Require().NoError(err)
		_, err = s.svc.OpenFor(s.at(time.Hour), early.ID)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("still open within the grace period", func() {
		_, err := s.svc.OpenFor(s.at(time.Hour+25*time.Second), sess.ID)
		s.NoError(err)
	})

	s.Run("closed past the grace period", func() {
		_, err := s.svc.OpenFor(s.at(time.Hour+31*time.Second), sess.ID)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown session", func() {
		_, err := s.svc.OpenFor(s.at(0), id.NewSessionID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("closed after End", func() {
		s.Require().NoError(s.svc.End(s.at(30*time.Minute), sess.ID))
		_, err := s.svc.OpenFor(s.at(31*time.Minute), sess.ID)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *ServiceSuite) TestRejectsInvertedWindow() {
	_, err := s.svc.Start(s.at(0), s.course, s.faculty, s.t0.Add(time.Hour), s.t0)
	s.Error(err)
}

func (s *ServiceSuite) TestSweepClosesOnlyPastGrace() {
	ended := s.startHourSession()
	running, err := s.svc.Start(s.at(0), s.course, s.faculty, s.t0, s.t0.Add(3*time.Hour))
	s.Require().NoError(err)

	// One hour session is 31s past grace; the three hour one still runs.
	closed, err := s.svc.Sweep(s.at(time.Hour + 31*time.Second))
	s.Require().NoError(err)
	s.Equal(int64(1), closed)

	got, err := s.store.GetSession(context.Background(), ended.ID)
	s.Require().NoError(err)
	s.False(got.Active)

	got, err = s.store.GetSession(context.Background(), running.ID)
	s.Require().NoError(err)
	s.True(got.Active)
}

func (s *ServiceSuite) TestEnrollment() {
	student := id.NewUserID()

	enrolled, err := s.svc.IsEnrolled(s.at(0), student, s.course)
	s.Require().NoError(err)
	s.False(enrolled)

	s.Require().NoError(s.svc.Enroll(s.at(0), student, s.course))

	enrolled, err = s.svc.IsEnrolled(s.at(0), student, s.course)
	s.Require().NoError(err)
	s.True(enrolled)
}

func (s *ServiceSuite) TestCampusLookup() {
	campus := session.Campus{Lat: 12.9716, Lon: 77.5946, RadiusMeters: 200}
	s.store.SetCampus(s.course, campus)

	got, err := s.svc.Campus(s.at(0), s.course)
	s.Require().NoError(err)
	s.Equal(campus, got)

	_, err = s.svc.Campus(s.at(0), id.NewCourseID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
