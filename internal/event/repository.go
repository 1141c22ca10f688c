package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository defines the interface for the append-only event log.
// There is deliberately no update or delete: the log is evidence.
type Repository interface {
	Append(ctx context.Context, e *Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	CountByType(ctx context.Context, t Type) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed event repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts an event. CreatedAt is stamped if zero.
func (r *SQLiteRepository) Append(ctx context.Context, e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	details := "{}"
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encoding event details: %w", err)
		}
		details = string(b)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO events (type, actor, user_id, state_from, state_to, zone_id, details, duress, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Type), nullString(e.Actor), nullString(e.UserID),
		nullString(e.StateFrom), nullString(e.StateTo), nullString(e.ZoneID),
		details, boolToInt(e.Duress), e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}

	e.ID, _ = result.LastInsertId() //nolint:errcheck // always succeeds on SQLite
	return nil
}

// Recent returns the newest events, most recent first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, actor, user_id, state_from, state_to, zone_id, details, duress, created_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var eventType, details, createdAt string
		var actor, userID, stateFrom, stateTo, zoneID sql.NullString
		var duress int

		if err := rows.Scan(&e.ID, &eventType, &actor, &userID, &stateFrom, &stateTo,
			&zoneID, &details, &duress, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		e.Type = Type(eventType)
		e.Actor = actor.String
		e.UserID = userID.String
		e.StateFrom = stateFrom.String
		e.StateTo = stateTo.String
		e.ZoneID = zoneID.String
		e.Duress = duress != 0
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("decoding event details: %w", err)
			}
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByType returns the number of logged events of the given type.
func (r *SQLiteRepository) CountByType(ctx context.Context, t Type) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE type = ?", string(t),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return count, nil
}

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
