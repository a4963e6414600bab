package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/session"
	id "rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

// PostgresStore persists sessions and enrollments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID id.SessionID) (session.AttendanceSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, course_id, faculty_id, start_time, end_time, is_active, created_at
		FROM attendance_sessions
		WHERE id = $1
	`, uuid.UUID(sessionID))

	var (
		sess                     session.AttendanceSession
		sid, courseID, facultyID uuid.UUID
	)
	err := row.Scan(&sid, &courseID, &facultyID, &sess.StartTime, &sess.EndTime, &sess.Active, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.AttendanceSession{}, sentinel.ErrNotFound
	}
	if err != nil {
		return session.AttendanceSession{}, fmt.Errorf("get session: %w", err)
	}
	sess.ID = id.SessionID(sid)
	sess.CourseID = id.CourseID(courseID)
	sess.FacultyID = id.UserID(facultyID)
	return sess, nil
}

func (s *PostgresStore) PutSession(ctx context.Context, sess session.AttendanceSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, course_id, faculty_id, start_time, end_time, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			is_active = EXCLUDED.is_active
	`, uuid.UUID(sess.ID), uuid.UUID(sess.CourseID), uuid.UUID(sess.FacultyID),
		sess.StartTime, sess.EndTime, sess.Active, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *PostgresStore) CloseExpired(ctx context.Context, endedBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_sessions SET is_active = FALSE
		WHERE is_active = TRUE AND end_time < $1
	`, endedBefore)
	if err != nil {
		return 0, fmt.Errorf("close expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close expired sessions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) IsEnrolled(ctx context.Context, studentID id.UserID, courseID id.CourseID) (bool, error) {
	var enrolled bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE student_id = $1 AND course_id = $2 AND is_active = TRUE
		)
	`, uuid.UUID(studentID), uuid.UUID(courseID)).Scan(&enrolled)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}

func (s *PostgresStore) PutEnrollment(ctx context.Context, e session.Enrollment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (student_id, course_id, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, course_id) DO UPDATE SET is_active = EXCLUDED.is_active
	`, uuid.UUID(e.StudentID), uuid.UUID(e.CourseID), e.Active)
	if err != nil {
		return fmt.Errorf("put enrollment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Campus(ctx context.Context, courseID id.CourseID) (session.Campus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT d.latitude, d.longitude, d.radius_meters
		FROM courses c
		JOIN departments d ON d.id = c.department_id
		WHERE c.id = $1
	`, uuid.UUID(courseID))

	var campus session.Campus
	err := row.Scan(&campus.Lat, &campus.Lon, &campus.RadiusMeters)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Campus{}, sentinel.ErrNotFound
	}
	if err != nil {
		return session.Campus{}, fmt.Errorf("get campus: %w", err)
	}
	return campus, nil
}
