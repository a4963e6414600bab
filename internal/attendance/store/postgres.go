package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"rollcall/internal/attendance"
	id "rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresStore persists attendance records in PostgreSQL. The
// (student, session) unique constraint backs Insert's conflict contract.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, rec attendance.AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records
			(id, student_id, session_id, marked_at, similarity_score, geo_distance_meters, ip_address, verification_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, uuid.UUID(rec.StudentID), uuid.UUID(rec.SessionID), rec.MarkedAt,
		rec.Similarity, rec.DistanceMeters, rec.IPAddress, rec.Method)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, studentID id.UserID, sessionID id.SessionID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records WHERE student_id = $1 AND session_id = $2
		)
	`, uuid.UUID(studentID), uuid.UUID(sessionID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance record: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]attendance.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, session_id, marked_at, similarity_score, geo_distance_meters, ip_address, verification_method
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY marked_at
	`, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	defer rows.Close()

	var out []attendance.AttendanceRecord
	for rows.Next() {
		var (
			rec          attendance.AttendanceRecord
			student, sid uuid.UUID
		)
		if err := rows.Scan(&rec.ID, &student, &sid, &rec.MarkedAt,
			&rec.Similarity, &rec.DistanceMeters, &rec.IPAddress, &rec.Method); err != nil {
			return nil, fmt.Errorf("list attendance records: %w", err)
		}
		rec.StudentID = id.UserID(student)
		rec.SessionID = id.SessionID(sid)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return out, nil
}
