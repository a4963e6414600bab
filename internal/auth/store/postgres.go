package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"rollcall/internal/auth"
	id "rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, u auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(u.ID), strings.ToLower(u.Email), u.Name, u.PasswordHash, string(u.Role), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.get(ctx, `
		SELECT id, email, name, password_hash, role, created_at
		FROM users WHERE email = $1
	`, strings.ToLower(email))
}

func (s *PostgresStore) GetByID(ctx context.Context, userID id.UserID) (auth.User, error) {
	return s.get(ctx, `
		SELECT id, email, name, password_hash, role, created_at
		FROM users WHERE id = $1
	`, uuid.UUID(userID))
}

func (s *PostgresStore) get(ctx context.Context, query string, arg any) (auth.User, error) {
	var (
		u      auth.User
		userID uuid.UUID
		role   string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&userID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("get user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.Role = auth.Role(role)
	return u, nil
}
