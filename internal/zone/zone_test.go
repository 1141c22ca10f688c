package zone

import (
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the zones table applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "zone-test-*.db")
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
		CREATE TABLE zones (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('perimeter', 'interior', 'entry')),
			active_home INTEGER NOT NULL DEFAULT 1,
			active_away INTEGER NOT NULL DEFAULT 1,
			bypassed INTEGER NOT NULL DEFAULT 0,
			bypassed_until TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`); err != nil {
		t.Fatalf("applying zone schema: %v", err)
	}

	return db
}

// seedZone registers a zone and returns it.
func seedZone(t *testing.T, repo Repository, id string, zt Type, home, away bool) *Zone {
	t.Helper()

	z := &Zone{ID: id, Name: id, Type: zt, ActiveHome: home, ActiveAway: away}
	if err := repo.Register(t.Context(), z); err != nil {
		t.Fatalf("registering zone %s: %v", id, err)
	}
	return z
}

func TestRepositoryRegisterAndGet(t *testing.T) {
	repo := NewRepository(testDB(t))

	seedZone(t, repo, "front_door", TypeEntry, true, true)

	got, err := repo.GetByID(t.Context(), "front_door")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "front_door" || got.Type != TypeEntry {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.Bypassed {
		t.Error("new zone should not be bypassed")
	}
}

func TestRepositoryRegisterUpsertKeepsBypass(t *testing.T) {
	repo := NewRepository(testDB(t))

	seedZone(t, repo, "garage", TypePerimeter, true, true)

	if err := repo.SetBypass(t.Context(), "garage", true, nil); err != nil {
		t.Fatalf("SetBypass() error = %v", err)
	}

	// Re-registration updates the definition but must not clear bypass.
	z := &Zone{ID: "garage", Name: "Garage Door", Type: TypePerimeter, ActiveHome: false, ActiveAway: true}
	if err := repo.Register(t.Context(), z); err != nil {
		t.Fatalf("Register() upsert error = %v", err)
	}

	got, err := repo.GetByID(t.Context(), "garage")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Garage Door" || got.ActiveHome {
		t.Errorf("upsert did not update fields: %+v", got)
	}
	if !got.Bypassed {
		t.Error("upsert cleared bypass state")
	}
}

func TestRepositoryRejectsInvalidType(t *testing.T) {
	repo := NewRepository(testDB(t))

	err := repo.Register(t.Context(), &Zone{ID: "weird", Name: "weird", Type: Type("submarine")})
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("Register() error = %v, want ErrInvalidType", err)
	}
}

func TestRepositorySetBypass(t *testing.T) {
	repo := NewRepository(testDB(t))

	seedZone(t, repo, "garage", TypePerimeter, true, true)

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := repo.SetBypass(t.Context(), "garage", true, &until); err != nil {
		t.Fatalf("SetBypass() error = %v", err)
	}

	got, err := repo.GetByID(t.Context(), "garage")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Bypassed || got.BypassedUntil == nil || !got.BypassedUntil.Equal(until) {
		t.Errorf("bypass state = %v/%v, want true/%v", got.Bypassed, got.BypassedUntil, until)
	}

	if err := repo.SetBypass(t.Context(), "garage", false, nil); err != nil {
		t.Fatalf("SetBypass(false) error = %v", err)
	}
	got, _ = repo.GetByID(t.Context(), "garage") //nolint:errcheck
	if got.Bypassed || got.BypassedUntil != nil {
		t.Error("SetBypass(false) should clear flag and expiry")
	}

	err = repo.SetBypass(t.Context(), "missing", true, nil)
	if !errors.Is(err, ErrZoneNotFound) {
		t.Fatalf("SetBypass() missing error = %v, want ErrZoneNotFound", err)
	}
}

func TestZoneBypassedAt(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	z := &Zone{Bypassed: true}
	if !z.BypassedAt(now) {
		t.Error("indefinite bypass should hold")
	}

	z.BypassedUntil = &later
	if !z.BypassedAt(now) {
		t.Error("bounded bypass should hold before expiry")
	}
	if z.BypassedAt(later.Add(time.Second)) {
		t.Error("bounded bypass should not hold after expiry")
	}

	z.Bypassed = false
	if z.BypassedAt(now) {
		t.Error("unbypassed zone reported bypassed")
	}
}

// newTestRegistry builds a Registry with a controllable clock.
func newTestRegistry(t *testing.T, repo Repository) (*Registry, *time.Time) {
	t.Helper()

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(repo, logging.Default())
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRegistryBypassLazyExpiry(t *testing.T) {
	repo := NewRepository(testDB(t))
	seedZone(t, repo, "garage", TypePerimeter, true, true)
	reg, now := newTestRegistry(t, repo)

	if err := reg.SetBypass(t.Context(), "garage", true, 30*time.Minute); err != nil {
		t.Fatalf("SetBypass() error = %v", err)
	}

	if !reg.IsBypassed(t.Context(), "garage") {
		t.Error("IsBypassed() = false inside bypass window")
	}

	*now = now.Add(31 * time.Minute)

	if reg.IsBypassed(t.Context(), "garage") {
		t.Error("IsBypassed() = true after expiry")
	}

	// Lazy expiry corrected the store row as well.
	got, err := repo.GetByID(t.Context(), "garage")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Bypassed {
		t.Error("store row still bypassed after lazy expiry")
	}
}

func TestRegistryIndefiniteBypass(t *testing.T) {
	repo := NewRepository(testDB(t))
	seedZone(t, repo, "garage", TypePerimeter, true, true)
	reg, now := newTestRegistry(t, repo)

	if err := reg.SetBypass(t.Context(), "garage", true, 0); err != nil {
		t.Fatalf("SetBypass() error = %v", err)
	}

	*now = now.Add(24 * time.Hour)
	if !reg.IsBypassed(t.Context(), "garage") {
		t.Error("indefinite bypass should survive until cleared")
	}
}

func TestRegistryClearAllBypasses(t *testing.T) {
	repo := NewRepository(testDB(t))
	seedZone(t, repo, "garage", TypePerimeter, true, true)
	seedZone(t, repo, "porch", TypePerimeter, true, true)
	reg, _ := newTestRegistry(t, repo)

	reg.SetBypass(t.Context(), "garage", true, time.Hour) //nolint:errcheck
	reg.SetBypass(t.Context(), "porch", true, 0)          //nolint:errcheck

	if err := reg.ClearAllBypasses(t.Context()); err != nil {
		t.Fatalf("ClearAllBypasses() error = %v", err)
	}

	if reg.IsBypassed(t.Context(), "garage") || reg.IsBypassed(t.Context(), "porch") {
		t.Error("zones still bypassed after ClearAllBypasses()")
	}

	got, _ := repo.GetByID(t.Context(), "garage") //nolint:errcheck
	if got.Bypassed {
		t.Error("store row still bypassed after ClearAllBypasses()")
	}
}

func TestRegistryLoadPrimesOverlay(t *testing.T) {
	repo := NewRepository(testDB(t))
	seedZone(t, repo, "garage", TypePerimeter, true, true)

	until := time.Date(2026, 8, 15, 13, 0, 0, 0, time.UTC)
	if err := repo.SetBypass(t.Context(), "garage", true, &until); err != nil {
		t.Fatalf("SetBypass() error = %v", err)
	}

	reg, _ := newTestRegistry(t, repo)
	if err := reg.Load(t.Context()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reg.IsBypassed(t.Context(), "garage") {
		t.Error("IsBypassed() = false after Load() with stored bypass")
	}
}

func TestRegistryIsActive(t *testing.T) {
	repo := NewRepository(testDB(t))
	reg, _ := newTestRegistry(t, repo)

	motion := seedZone(t, repo, "hall_motion", TypeInterior, false, true)
	door := seedZone(t, repo, "front_door", TypeEntry, true, true)

	if reg.IsActive(t.Context(), motion, ModeHome) {
		t.Error("interior zone should be inactive in home mode")
	}
	if !reg.IsActive(t.Context(), motion, ModeAway) {
		t.Error("interior zone should be active in away mode")
	}
	if !reg.IsActive(t.Context(), door, ModeHome) {
		t.Error("entry zone should be active in home mode")
	}

	reg.SetBypass(t.Context(), door.ID, true, time.Hour) //nolint:errcheck
	if reg.IsActive(t.Context(), door, ModeAway) {
		t.Error("bypassed zone should be inactive")
	}
}
