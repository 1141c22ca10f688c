package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AttemptRepository defines the interface for the failed-attempt ledger.
//
// The ledger is system-wide, not per-user: an attacker cycling PINs must
// not get a fresh budget per account.
type AttemptRepository interface {
	Record(ctx context.Context, source string, at time.Time) error
	CountSince(ctx context.Context, since time.Time) (int, error)
	ClearAll(ctx context.Context) error
	PruneBefore(ctx context.Context, cutoff time.Time) error
}

// SQLiteAttemptRepository implements AttemptRepository using SQLite.
type SQLiteAttemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new SQLite-backed attempt repository.
func NewAttemptRepository(db *sql.DB) *SQLiteAttemptRepository {
	return &SQLiteAttemptRepository{db: db}
}

// Record appends a failed attempt to the ledger.
func (r *SQLiteAttemptRepository) Record(ctx context.Context, source string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO failed_attempts (source, attempted_at) VALUES (?, ?)",
		source, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording failed attempt: %w", err)
	}
	return nil
}

// CountSince returns the number of failed attempts at or after the given time.
func (r *SQLiteAttemptRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM failed_attempts WHERE attempted_at >= ?",
		since.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting failed attempts: %w", err)
	}
	return count, nil
}

// ClearAll removes every failed attempt. Called after any successful
// authentication: a valid PIN proves an authorised person is present.
func (r *SQLiteAttemptRepository) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM failed_attempts"); err != nil {
		return fmt.Errorf("clearing failed attempts: %w", err)
	}
	return nil
}

// PruneBefore removes attempts older than the cutoff. Housekeeping only;
// lockout decisions use CountSince and never see pruned rows anyway.
func (r *SQLiteAttemptRepository) PruneBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM failed_attempts WHERE attempted_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("pruning failed attempts: %w", err)
	}
	return nil
}
