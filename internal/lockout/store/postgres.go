package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/lockout"
	id "rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

// PostgresStore persists lockout state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID, category lockout.Category) (lockout.State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT failures, locked_until
		FROM lockouts
		WHERE user_id = $1 AND category = $2
	`, uuid.UUID(userID), string(category))

	var (
		st          lockout.State
		lockedUntil sql.NullTime
	)
	err := row.Scan(&st.Failures, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return lockout.State{}, sentinel.ErrNotFound
	}
	if err != nil {
		return lockout.State{}, fmt.Errorf("get lockout state: %w", err)
	}
	st.UserID = userID
	st.Category = category
	if lockedUntil.Valid {
		st.LockedUntil = lockedUntil.Time
	}
	return st, nil
}

func (s *PostgresStore) Put(ctx context.Context, st lockout.State) error {
	var lockedUntil sql.NullTime
	if !st.LockedUntil.IsZero() {
		lockedUntil = sql.NullTime{Time: st.LockedUntil.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lockouts (user_id, category, failures, locked_until, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, category)
		DO UPDATE SET failures = EXCLUDED.failures, locked_until = EXCLUDED.locked_until, updated_at = EXCLUDED.updated_at
	`, uuid.UUID(st.UserID), string(st.Category), st.Failures, lockedUntil, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put lockout state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID, category lockout.Category) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM lockouts WHERE user_id = $1 AND category = $2
	`, uuid.UUID(userID), string(category))
	if err != nil {
		return fmt.Errorf("delete lockout state: %w", err)
	}
	return nil
}
