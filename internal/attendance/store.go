package attendance

import (
	"context"

	"rollcall/pkg/domain"
)

// RecordStore persists attendance records. Insert returns sentinel.ErrConflict
// when a record for the same (student, session) already exists; the unique
// constraint is the last line of defense against racing duplicates.
type RecordStore interface {
	Insert(ctx context.Context, rec AttendanceRecord) error
	Exists(ctx context.Context, studentID domain.UserID, sessionID domain.SessionID) (bool, error)
	ListBySession(ctx context.Context, sessionID domain.SessionID) ([]AttendanceRecord, error)
}
