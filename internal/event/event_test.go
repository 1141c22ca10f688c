package event

import (
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "event-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`
		CREATE TABLE events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			actor TEXT,
			user_id TEXT,
			state_from TEXT,
			state_to TEXT,
			zone_id TEXT,
			details TEXT NOT NULL DEFAULT '{}',
			duress INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
	`); err != nil {
		t.Fatalf("applying event schema: %v", err)
	}

	return db
}

func TestRepositoryAppendAndRecent(t *testing.T) {
	repo := NewRepository(testDB(t))

	first := &Event{
		Type:      TypeArming,
		Actor:     "Alice",
		UserID:    "usr-1",
		StateFrom: "disarmed",
		StateTo:   "arming",
	}
	if err := repo.Append(t.Context(), first); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first.ID == 0 {
		t.Error("Append() should populate ID")
	}

	second := &Event{
		Type:      TypeTriggered,
		StateFrom: "pending",
		StateTo:   "triggered",
		ZoneID:    "front_door",
		Details:   map[string]any{"zone_name": "Front Door"},
	}
	if err := repo.Append(t.Context(), second); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := repo.Recent(t.Context(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Recent() returned %d events, want 2", len(events))
	}

	// Most recent first.
	if events[0].Type != TypeTriggered || events[0].ZoneID != "front_door" {
		t.Errorf("Recent()[0] = %+v", events[0])
	}
	if events[0].Details["zone_name"] != "Front Door" {
		t.Errorf("Recent()[0].Details = %v", events[0].Details)
	}
	if events[1].Actor != "Alice" || events[1].StateTo != "arming" {
		t.Errorf("Recent()[1] = %+v", events[1])
	}
}

func TestRepositoryDuressFlag(t *testing.T) {
	repo := NewRepository(testDB(t))

	e := &Event{Type: TypeDisarmed, Actor: "Alice", Duress: true}
	if err := repo.Append(t.Context(), e); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := repo.Recent(t.Context(), 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if !events[0].Duress {
		t.Error("duress flag lost in round-trip")
	}
}

func TestRepositoryRecentLimit(t *testing.T) {
	repo := NewRepository(testDB(t))

	for i := 0; i < 5; i++ {
		if err := repo.Append(t.Context(), &Event{Type: TypeAuthFailed}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	events, err := repo.Recent(t.Context(), 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 3 {
		t.Errorf("Recent(3) returned %d events", len(events))
	}
}

func TestRepositoryCountByType(t *testing.T) {
	repo := NewRepository(testDB(t))

	repo.Append(t.Context(), &Event{Type: TypeDisarmed}) //nolint:errcheck
	repo.Append(t.Context(), &Event{Type: TypeDisarmed}) //nolint:errcheck
	repo.Append(t.Context(), &Event{Type: TypeArming})   //nolint:errcheck

	count, err := repo.CountByType(t.Context(), TypeDisarmed)
	if err != nil {
		t.Fatalf("CountByType() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountByType() = %d, want 2", count)
	}
}

func TestAppenderWritesAsync(t *testing.T) {
	repo := NewRepository(testDB(t))
	appender := NewAppender(repo, logging.Default())

	appender.Log(Event{Type: TypeArmedAway, Actor: "Alice"})
	appender.Log(Event{Type: TypeDisarmed, Actor: "Alice"})

	// Close drains the queue.
	appender.Close()

	events, err := repo.Recent(t.Context(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Recent() returned %d events after Close, want 2", len(events))
	}
	if appender.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", appender.Dropped())
	}
}

func TestAppenderStampsCreatedAt(t *testing.T) {
	repo := NewRepository(testDB(t))
	appender := NewAppender(repo, logging.Default())

	before := time.Now().UTC().Add(-time.Second)
	appender.Log(Event{Type: TypeAuthFailed})
	appender.Close()

	events, err := repo.Recent(t.Context(), 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Recent() returned %d events", len(events))
	}
	if events[0].CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, too old", events[0].CreatedAt)
	}
}
