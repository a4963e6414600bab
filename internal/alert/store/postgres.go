package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"rollcall/internal/alert"
	id "rollcall/pkg/domain"
)

// PostgresStore persists alerts in PostgreSQL, details as jsonb.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, a alert.SecurityAlert) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("encode alert details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO security_alerts (id, user_id, event, score, details, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, uuid.UUID(a.UserID), a.Event, a.Score, details, a.Resolved, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert security alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]alert.SecurityAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, event, score, details, resolved, created_at
		FROM security_alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list security alerts: %w", err)
	}
	defer rows.Close()

	var out []alert.SecurityAlert
	for rows.Next() {
		var (
			a       alert.SecurityAlert
			userID  uuid.UUID
			details []byte
		)
		if err := rows.Scan(&a.ID, &userID, &a.Event, &a.Score, &details, &a.Resolved, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("list security alerts: %w", err)
		}
		a.UserID = id.UserID(userID)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, fmt.Errorf("decode alert details: %w", err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list security alerts: %w", err)
	}
	return out, nil
}
