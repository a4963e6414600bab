package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/voucher"
	id "rollcall/pkg/domain"
)

const defaultLockTimeout = 5 * time.Second

// PostgresStore persists vouchers in PostgreSQL. Redemption exclusivity is a
// row lock (SELECT ... FOR UPDATE) held for the whole check-then-mark
// sequence, scoped to a single voucher so unrelated attempts never serialize.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, v voucher.Voucher) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_vouchers (id, token, user_id, session_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.ID, v.Token, uuid.UUID(v.UserID), uuid.UUID(v.SessionID), v.ExpiresAt, v.Used, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("create voucher: %w", err)
	}
	return nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attendance_vouchers WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge expired vouchers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired vouchers: %w", err)
	}
	return n, nil
}

// WithTokenLock opens a transaction, takes the row lock, and runs fn. The
// transaction commits even when fn returns a domain error so that mutations
// such as consuming an expired voucher survive; only storage failures roll back.
func (s *PostgresStore) WithTokenLock(ctx context.Context, token string, fn func(r voucher.Redemption) error) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultLockTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redemption: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	red := &pgRedemption{tx: tx}
	row := tx.QueryRowContext(ctx, `
		SELECT id, token, user_id, session_id, expires_at, used, created_at
		FROM attendance_vouchers
		WHERE token = $1
		FOR UPDATE
	`, token)

	var (
		v                 voucher.Voucher
		userID, sessionID uuid.UUID
	)
	err = row.Scan(&v.ID, &v.Token, &userID, &sessionID, &v.ExpiresAt, &v.Used, &v.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fn decides what a missing row means.
	case err != nil:
		return fmt.Errorf("lock voucher row: %w", err)
	default:
		v.UserID = id.UserID(userID)
		v.SessionID = id.SessionID(sessionID)
		red.voucher = &v
	}

	ferr := fn(red)
	if red.storeErr != nil {
		return red.storeErr
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redemption: %w", err)
	}
	return ferr
}

type pgRedemption struct {
	tx       *sql.Tx
	voucher  *voucher.Voucher
	storeErr error
}

func (r *pgRedemption) Voucher() (voucher.Voucher, bool) {
	if r.voucher == nil {
		return voucher.Voucher{}, false
	}
	return *r.voucher, true
}

func (r *pgRedemption) MarkUsed(ctx context.Context) error {
	_, err := r.tx.ExecContext(ctx, `UPDATE attendance_vouchers SET used = TRUE WHERE id = $1`, r.voucher.ID)
	if err != nil {
		r.storeErr = fmt.Errorf("mark voucher used: %w", err)
		return r.storeErr
	}
	r.voucher.Used = true
	return nil
}
