package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LockAccessRepository defines the interface for smart-lock access grants.
// A grant lets a user operate a specific lock with their alarm PIN.
type LockAccessRepository interface {
	Grant(ctx context.Context, userID, lockID string) error
	Revoke(ctx context.Context, userID, lockID string) error
	HasAccess(ctx context.Context, userID, lockID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]string, error)
}

// SQLiteLockAccessRepository implements LockAccessRepository using SQLite.
type SQLiteLockAccessRepository struct {
	db *sql.DB
}

// NewLockAccessRepository creates a new SQLite-backed lock access repository.
func NewLockAccessRepository(db *sql.DB) *SQLiteLockAccessRepository {
	return &SQLiteLockAccessRepository{db: db}
}

// Grant gives a user access to a lock. Granting twice is a no-op.
func (r *SQLiteLockAccessRepository) Grant(ctx context.Context, userID, lockID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_lock_access (user_id, lock_id, created_at) VALUES (?, ?, ?)`,
		userID, lockID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("granting lock access: %w", err)
	}
	return nil
}

// Revoke removes a user's access to a lock.
func (r *SQLiteLockAccessRepository) Revoke(ctx context.Context, userID, lockID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM user_lock_access WHERE user_id = ? AND lock_id = ?",
		userID, lockID,
	)
	if err != nil {
		return fmt.Errorf("revoking lock access: %w", err)
	}
	return nil
}

// HasAccess reports whether a user may operate the given lock.
func (r *SQLiteLockAccessRepository) HasAccess(ctx context.Context, userID, lockID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_lock_access WHERE user_id = ? AND lock_id = ?",
		userID, lockID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking lock access: %w", err)
	}
	return count > 0, nil
}

// ListForUser returns the lock IDs a user may operate.
func (r *SQLiteLockAccessRepository) ListForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT lock_id FROM user_lock_access WHERE user_id = ? ORDER BY lock_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing lock access: %w", err)
	}
	defer rows.Close()

	locks := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning lock access: %w", err)
		}
		locks = append(locks, id)
	}
	return locks, rows.Err()
}
