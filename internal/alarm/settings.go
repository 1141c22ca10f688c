package alarm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Settings is the single row of alarm timing and notification
// configuration. Delays and duration are in seconds.
type Settings struct {
	EntryDelay      int       `json:"entry_delay"`
	ExitDelay       int       `json:"exit_delay"`
	AlarmDuration   int       `json:"alarm_duration"`
	NotifyOnArm     bool      `json:"notify_on_arm"`
	NotifyOnTrigger bool      `json:"notify_on_trigger"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks the timing values for sanity.
func (s *Settings) Validate() error {
	if s.EntryDelay < 0 || s.EntryDelay > 600 {
		return fmt.Errorf("entry_delay must be 0-600 seconds, got %d", s.EntryDelay)
	}
	if s.ExitDelay < 0 || s.ExitDelay > 600 {
		return fmt.Errorf("exit_delay must be 0-600 seconds, got %d", s.ExitDelay)
	}
	if s.AlarmDuration < 1 || s.AlarmDuration > 3600 {
		return fmt.Errorf("alarm_duration must be 1-3600 seconds, got %d", s.AlarmDuration)
	}
	return nil
}

// ErrSettingsNotFound indicates the configuration row is missing, which
// means the migrations never ran.
var ErrSettingsNotFound = errors.New("alarm settings row not found")

// SettingsRepository provides access to the alarm configuration row.
type SettingsRepository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

// SQLiteSettingsRepository implements SettingsRepository over the
// seeded singleton row in alarm_config.
type SQLiteSettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a settings repository.
func NewSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

func (r *SQLiteSettingsRepository) Get(ctx context.Context) (*Settings, error) {
	query := `
		SELECT entry_delay, exit_delay, alarm_duration,
		       notify_on_arm, notify_on_trigger, updated_at
		FROM alarm_config WHERE id = 1
	`

	var s Settings
	var notifyArm, notifyTrigger int
	var updatedAt string
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.EntryDelay,
		&s.ExitDelay,
		&s.AlarmDuration,
		&notifyArm,
		&notifyTrigger,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading alarm settings: %w", err)
	}

	s.NotifyOnArm = notifyArm != 0
	s.NotifyOnTrigger = notifyTrigger != 0
	s.UpdatedAt = parseTimestamp(updatedAt)
	return &s, nil
}

// parseTimestamp accepts both RFC3339 (written by Update) and SQLite's
// CURRENT_TIMESTAMP format (the seeded row).
func parseTimestamp(v string) time.Time {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", v) //nolint:errcheck // zero time on unknown format
	return t
}

func (r *SQLiteSettingsRepository) Update(ctx context.Context, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE alarm_config
		SET entry_delay = ?, exit_delay = ?, alarm_duration = ?,
		    notify_on_arm = ?, notify_on_trigger = ?,
		    updated_at = ?
		WHERE id = 1
	`

	result, err := r.db.ExecContext(ctx, query,
		s.EntryDelay,
		s.ExitDelay,
		s.AlarmDuration,
		boolToInt(s.NotifyOnArm),
		boolToInt(s.NotifyOnTrigger),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("updating alarm settings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrSettingsNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
