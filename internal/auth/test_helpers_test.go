package auth

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
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

		CREATE TABLE failed_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL DEFAULT '',
			attempted_at TEXT NOT NULL
		);

		CREATE INDEX idx_failed_attempts_at ON failed_attempts(attempted_at);

		CREATE TABLE user_lock_access (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			lock_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (user_id, lock_id)
		);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying auth schema: %v", err)
	}

	return db
}

// seedTestUser inserts a test user with the given PIN and returns it.
func seedTestUser(t *testing.T, db *sql.DB, name, pin string, isAdmin bool) *User {
	t.Helper()
	return seedUser(t, db, &User{Name: name, IsAdmin: isAdmin}, pin)
}

// seedDuressUser inserts a duress credential record.
func seedDuressUser(t *testing.T, db *sql.DB, name, pin string) *User {
	t.Helper()
	return seedUser(t, db, &User{Name: name, IsDuress: true}, pin)
}

func seedUser(t *testing.T, db *sql.DB, user *User, pin string) *User {
	t.Helper()

	hash, err := HashPIN(pin)
	if err != nil {
		t.Fatalf("hashing PIN: %v", err)
	}
	user.PINHash = hash

	repo := NewUserRepository(db)
	if err := repo.Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", user.Name, err)
	}
	return user
}
