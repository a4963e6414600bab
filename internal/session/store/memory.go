// Package store provides session store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"rollcall/internal/session"
	"rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

type enrollmentKey struct {
	studentID domain.UserID
	courseID  domain.CourseID
}

// InMemoryStore keeps sessions, enrollments and campuses in maps.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[domain.SessionID]session.AttendanceSession
	enrollments map[enrollmentKey]session.Enrollment
	campuses    map[domain.CourseID]session.Campus
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[domain.SessionID]session.AttendanceSession),
		enrollments: make(map[enrollmentKey]session.Enrollment),
		campuses:    make(map[domain.CourseID]session.Campus),
	}
}

func (s *InMemoryStore) GetSession(_ context.Context, sessionID domain.SessionID) (session.AttendanceSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return session.AttendanceSession{}, sentinel.ErrNotFound
	}
	return sess, nil
}

func (s *InMemoryStore) PutSession(_ context.Context, sess session.AttendanceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemoryStore) CloseExpired(_ context.Context, endedBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var closed int64
	for id, sess := range s.sessions {
		if sess.Active && sess.EndTime.Before(endedBefore) {
			sess.Active = false
			s.sessions[id] = sess
			closed++
		}
	}
	return closed, nil
}

func (s *InMemoryStore) IsEnrolled(_ context.Context, studentID domain.UserID, courseID domain.CourseID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrollments[enrollmentKey{studentID, courseID}]
	return ok && e.Active, nil
}

func (s *InMemoryStore) PutEnrollment(_ context.Context, e session.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[enrollmentKey{e.StudentID, e.CourseID}] = e
	return nil
}

// SetCampus seeds the campus reference for a course.
func (s *InMemoryStore) SetCampus(courseID domain.CourseID, c session.Campus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campuses[courseID] = c
}

func (s *InMemoryStore) Campus(_ context.Context, courseID domain.CourseID) (session.Campus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campuses[courseID]
	if !ok {
		return session.Campus{}, sentinel.ErrNotFound
	}
	return c, nil
}
