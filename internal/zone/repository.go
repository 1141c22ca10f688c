package zone

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for zone persistence.
//
// Zones are registered by external sensor bridges under their own IDs, so
// Register is an upsert rather than a create-or-fail.
type Repository interface {
	Register(ctx context.Context, z *Zone) error
	GetByID(ctx context.Context, id string) (*Zone, error)
	List(ctx context.Context) ([]Zone, error)
	SetBypass(ctx context.Context, id string, bypassed bool, until *time.Time) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed zone repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Register inserts or updates a zone definition. Bypass state is
// preserved across re-registration: a sensor bridge reannouncing its
// zones must not un-bypass anything.
func (r *SQLiteRepository) Register(ctx context.Context, z *Zone) error {
	if z.ID == "" {
		return fmt.Errorf("zone ID is required")
	}
	if !IsValidType(z.Type) {
		return ErrInvalidType
	}

	now := time.Now().UTC().Format(time.RFC3339)
	z.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	if z.CreatedAt.IsZero() {
		z.CreatedAt = z.UpdatedAt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO zones (id, name, type, active_home, active_away, bypassed, bypassed_until, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, NULL, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			active_home = excluded.active_home,
			active_away = excluded.active_away,
			updated_at = excluded.updated_at`,
		z.ID, z.Name, string(z.Type), boolToInt(z.ActiveHome), boolToInt(z.ActiveAway), now, now,
	)
	if err != nil {
		return fmt.Errorf("registering zone: %w", err)
	}
	return nil
}

// GetByID retrieves a zone by its external identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Zone, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, type, active_home, active_away, bypassed, bypassed_until, created_at, updated_at FROM zones WHERE id = ?", id)
	return scanZoneFrom(row)
}

// List returns all zones ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, type, active_home, active_away, bypassed, bypassed_until, created_at, updated_at FROM zones ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		z, err := scanZoneFrom(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zones: %w", err)
	}

	if zones == nil {
		zones = []Zone{}
	}
	return zones, nil
}

// SetBypass sets or clears a zone's bypass flag and expiry.
func (r *SQLiteRepository) SetBypass(ctx context.Context, id string, bypassed bool, until *time.Time) error {
	if !bypassed {
		until = nil
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE zones SET bypassed = ?, bypassed_until = ?, updated_at = ? WHERE id = ?",
		boolToInt(bypassed), nullTime(until), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("setting zone bypass: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// Delete removes a zone by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM zones WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting zone: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanZoneFrom(s scanner) (*Zone, error) {
	var z Zone
	var zoneType string
	var activeHome, activeAway, bypassed int
	var bypassedUntil sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&z.ID, &z.Name, &zoneType, &activeHome, &activeAway, &bypassed, &bypassedUntil, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, fmt.Errorf("scanning zone: %w", err)
	}

	z.Type = Type(zoneType)
	z.ActiveHome = activeHome != 0
	z.ActiveAway = activeAway != 0
	z.Bypassed = bypassed != 0
	if bypassedUntil.Valid {
		t, err := time.Parse(time.RFC3339, bypassedUntil.String)
		if err == nil {
			z.BypassedUntil = &t
		}
	}

	z.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	z.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &z, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
