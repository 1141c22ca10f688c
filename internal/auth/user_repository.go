package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userColumns = `id, name, pin_hash, lock_pin_hash, is_admin, is_duress, enabled,
	phone, email, use_count, last_used_at, created_at, updated_at`

// UserRepository defines the interface for credential record persistence.
// There is no hard delete: accounts are disabled, never removed.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByName(ctx context.Context, name string) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListEnabled(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	UpdatePIN(ctx context.Context, id, pinHash string) error
	UpdateLockPIN(ctx context.Context, id, lockPINHash string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	RecordUse(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a new credential record. The ID is generated if empty.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt
	user.Enabled = true

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, pin_hash, lock_pin_hash, is_admin, is_duress, enabled, phone, email, use_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, 0, ?, ?)`,
		user.ID, user.Name, user.PINHash, nullString(user.LockPINHash),
		boolToInt(user.IsAdmin), boolToInt(user.IsDuress),
		nullString(user.Phone), nullString(user.Email), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUserFrom(row)
}

// GetByName retrieves a user by their display name.
func (r *SQLiteUserRepository) GetByName(ctx context.Context, name string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE name = ?", name)
	return scanUserFrom(row)
}

// List returns all users, including disabled ones, ordered by creation date.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	return r.list(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC")
}

// ListEnabled returns only enabled users. This is the set Verify
// iterates: disabled credentials never authenticate.
func (r *SQLiteUserRepository) ListEnabled(ctx context.Context) ([]User, error) {
	return r.list(ctx, "SELECT "+userColumns+" FROM users WHERE enabled = 1 ORDER BY created_at ASC")
}

func (r *SQLiteUserRepository) list(ctx context.Context, query string) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Update modifies a user's mutable fields (name, admin/duress flags,
// contact info).
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	now := time.Now().UTC().Format(time.RFC3339)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, is_admin = ?, is_duress = ?, phone = ?, email = ?, updated_at = ? WHERE id = ?`,
		user.Name, boolToInt(user.IsAdmin), boolToInt(user.IsDuress),
		nullString(user.Phone), nullString(user.Email), now, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameExists
		}
		return fmt.Errorf("updating user: %w", err)
	}

	return oneRowOr(result, ErrUserNotFound)
}

// UpdatePIN changes a user's alarm PIN hash.
func (r *SQLiteUserRepository) UpdatePIN(ctx context.Context, id, pinHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET pin_hash = ?, updated_at = ? WHERE id = ?`,
		pinHash, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating PIN: %w", err)
	}
	return oneRowOr(result, ErrUserNotFound)
}

// UpdateLockPIN changes a user's lock PIN hash. An empty hash clears it.
func (r *SQLiteUserRepository) UpdateLockPIN(ctx context.Context, id, lockPINHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET lock_pin_hash = ?, updated_at = ? WHERE id = ?`,
		nullString(lockPINHash), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating lock PIN: %w", err)
	}
	return oneRowOr(result, ErrUserNotFound)
}

// SetEnabled soft-deletes (false) or restores (true) a credential record.
func (r *SQLiteUserRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("setting user enabled: %w", err)
	}
	return oneRowOr(result, ErrUserNotFound)
}

// RecordUse bumps a user's usage counter and last-used timestamp.
func (r *SQLiteUserRepository) RecordUse(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET use_count = use_count + 1, last_used_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("recording user use: %w", err)
	}
	return oneRowOr(result, ErrUserNotFound)
}

// Count returns the total number of credential records, disabled included.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var lockHash, phone, email, lastUsed sql.NullString
	var isAdmin, isDuress, enabled int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Name, &u.PINHash, &lockHash, &isAdmin, &isDuress, &enabled,
		&phone, &email, &u.UseCount, &lastUsed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.IsAdmin = isAdmin != 0
	u.IsDuress = isDuress != 0
	u.Enabled = enabled != 0
	u.LockPINHash = lockHash.String
	u.Phone = phone.String
	u.Email = email.String
	if lastUsed.Valid {
		t, err := time.Parse(time.RFC3339, lastUsed.String)
		if err == nil {
			u.LastUsedAt = &t
		}
	}

	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// oneRowOr returns notFound when the statement touched no rows.
func oneRowOr(result sql.Result, notFound error) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return notFound
	}
	return nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
