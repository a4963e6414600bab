// Package store provides attendance record store implementations.
package store

import (
	"context"
	"sync"

	"rollcall/internal/attendance"
	"rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

type recordKey struct {
	studentID domain.UserID
	sessionID domain.SessionID
}

// InMemoryStore keeps records in a map keyed by (student, session).
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]attendance.AttendanceRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey]attendance.AttendanceRecord)}
}

func (s *InMemoryStore) Insert(_ context.Context, rec attendance.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{rec.StudentID, rec.SessionID}
	if _, exists := s.records[key]; exists {
		return sentinel.ErrConflict
	}
	s.records[key] = rec
	return nil
}

func (s *InMemoryStore) Exists(_ context.Context, studentID domain.UserID, sessionID domain.SessionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[recordKey{studentID, sessionID}]
	return ok, nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID domain.SessionID) ([]attendance.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []attendance.AttendanceRecord
	for key, rec := range s.records {
		if key.sessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}
