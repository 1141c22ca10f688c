package alarm

import (
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sentinelsec/sentinel-core/internal/auth"
	"github.com/sentinelsec/sentinel-core/internal/event"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/config"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
	"github.com/sentinelsec/sentinel-core/internal/monitoring"
	"github.com/sentinelsec/sentinel-core/internal/zone"
)

const (
	testMaxAttempts = 5
	testWindow      = 5 * time.Minute
)

// testDB creates a temporary SQLite database with the full controller
// schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "alarm-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			pin_hash TEXT NOT NULL,
			lock_pin_hash TEXT,
			is_admin INTEGER NOT NULL DEFAULT 0,
			is_duress INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1,
			phone TEXT,
			email TEXT,
			use_count INTEGER NOT NULL DEFAULT 0,
			last_used_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

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

		CREATE TABLE alarm_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			entry_delay INTEGER NOT NULL DEFAULT 30,
			exit_delay INTEGER NOT NULL DEFAULT 60,
			alarm_duration INTEGER NOT NULL DEFAULT 300,
			notify_on_arm INTEGER NOT NULL DEFAULT 0,
			notify_on_trigger INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO alarm_config (id) VALUES (1);

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

		CREATE TABLE failed_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL DEFAULT '',
			attempted_at TEXT NOT NULL
		);

		CREATE TABLE user_lock_access (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			lock_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (user_id, lock_id)
		);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

// fakeClock is a manually advanced Clock. Timers fire synchronously
// inside Advance, on the calling goroutine, in schedule order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	f       func()
	fired   bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTimer{clock: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, ft)
	return ft
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, firing every due timer. Callbacks
// run outside the clock mutex so they may schedule or stop timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, ft := range c.timers {
			if ft.fired || ft.stopped || ft.when.After(target) {
				continue
			}
			if next == nil || ft.when.Before(next.when) {
				next = ft
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.when.After(c.now) {
			c.now = next.when
		}
		next.fired = true
		f := next.f
		c.mu.Unlock()
		f()
	}
}

// recorder captures subscriber notifications.
type recorder struct {
	mu          sync.Mutex
	transitions []string
	armed       []string
	disarmed    []string
	triggered   []string
	duress      []string
}

func (r *recorder) StateChanged(prev, next State, actor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(prev)+">"+string(next))
}

func (r *recorder) Armed(mode State, actor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = append(r.armed, string(mode))
}

func (r *recorder) Disarmed(actor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disarmed = append(r.disarmed, actor)
}

func (r *recorder) Triggered(zoneID, zoneName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggered = append(r.triggered, zoneID)
}

func (r *recorder) DuressUsed(actor string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duress = append(r.duress, actor)
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		transitions: append([]string(nil), r.transitions...),
		armed:       append([]string(nil), r.armed...),
		disarmed:    append([]string(nil), r.disarmed...),
		triggered:   append([]string(nil), r.triggered...),
		duress:      append([]string(nil), r.duress...),
	}
}

// testRig wires a Machine over a real database with a fake clock and a
// disabled monitoring relay.
type testRig struct {
	machine  *Machine
	clock    *fakeClock
	db       *sql.DB
	users    auth.UserRepository
	zones    *zone.Registry
	events   event.Repository
	settings SettingsRepository
	rec      *recorder
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	return newTestRigMonitored(t, nil)
}

// newTestRigMonitored wires the machine to the given monitoring relay;
// nil gets a disabled one.
func newTestRigMonitored(t *testing.T, monitor *monitoring.Service) *testRig {
	t.Helper()

	db := testDB(t)
	logger := logging.Default()
	if monitor == nil {
		monitor = monitoring.NewService(config.MonitoringConfig{}, logger)
	}

	users := auth.NewUserRepository(db)
	attempts := auth.NewAttemptRepository(db)
	locks := auth.NewLockAccessRepository(db)
	guard := auth.NewGuard(users, attempts, locks, testMaxAttempts, testWindow, logger)

	registry := zone.NewRegistry(zone.NewRepository(db), logger)
	eventRepo := event.NewRepository(db)
	appender := event.NewAppender(eventRepo, logger)
	t.Cleanup(appender.Close)

	clock := newFakeClock()
	rec := &recorder{}

	m := NewMachine(Deps{
		Guard:    guard,
		Users:    users,
		Locks:    locks,
		Zones:    registry,
		Events:   appender,
		Settings: NewSettingsRepository(db),
		Monitor:  monitor,
		Logger:   logger,
		Clock:    clock,
	})
	m.Subscribe(rec)

	return &testRig{
		machine:  m,
		clock:    clock,
		db:       db,
		users:    users,
		zones:    registry,
		events:   eventRepo,
		settings: NewSettingsRepository(db),
		rec:      rec,
	}
}

func (r *testRig) seedUser(t *testing.T, u *auth.User, pin string) *auth.User {
	t.Helper()

	hash, err := auth.HashPIN(pin)
	if err != nil {
		t.Fatalf("hashing PIN: %v", err)
	}
	u.PINHash = hash
	if err := r.users.Create(t.Context(), u); err != nil {
		t.Fatalf("creating user %s: %v", u.Name, err)
	}
	return u
}

func (r *testRig) seedZone(t *testing.T, id, name string, zt zone.Type, home, away bool) {
	t.Helper()

	z := &zone.Zone{ID: id, Name: name, Type: zt, ActiveHome: home, ActiveAway: away}
	if err := r.zones.Register(t.Context(), z); err != nil {
		t.Fatalf("registering zone %s: %v", id, err)
	}
}

// waitEventCount polls until the async appender has persisted the
// expected number of events of a type.
func (r *testRig) waitEventCount(t *testing.T, typ event.Type, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := r.events.CountByType(t.Context(), typ)
		if err != nil {
			t.Fatalf("counting %s events: %v", typ, err)
		}
		if n == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s event count = %d, want %d", typ, n, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
