package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rollcall/internal/biometric"
	id "rollcall/pkg/domain"
	"rollcall/pkg/sentinel"
)

// PostgresStore persists templates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, tpl biometric.Template) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO biometric_templates (user_id, ciphertext, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET ciphertext = EXCLUDED.ciphertext, updated_at = EXCLUDED.updated_at
	`, uuid.UUID(tpl.UserID), tpl.Ciphertext, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID) (biometric.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, ciphertext, updated_at
		FROM biometric_templates
		WHERE user_id = $1
	`, uuid.UUID(userID))

	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return biometric.Template{}, sentinel.ErrNotFound
	}
	if err != nil {
		return biometric.Template{}, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]biometric.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, ciphertext, updated_at FROM biometric_templates`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []biometric.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (biometric.Template, error) {
	var (
		tpl    biometric.Template
		userID uuid.UUID
	)
	if err := row.Scan(&userID, &tpl.Ciphertext, &tpl.UpdatedAt); err != nil {
		return biometric.Template{}, err
	}
	tpl.UserID = id.UserID(userID)
	return tpl, nil
}
