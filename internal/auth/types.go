package auth

import (
	"errors"
	"time"
)

// User represents a keypad credential record.
//
// PINHash is the alarm PIN; LockPINHash, when present, is a separate code
// for operating smart locks. Both are Argon2id PHC hashes; plaintext
// never touches disk.
//
// A record with IsDuress set is a fully valid credential that privately
// signals distress: it must behave identically to a normal credential on
// every user-visible surface, with one silent monitoring notification as
// the only difference.
//
// Users are soft-deleted via Enabled so the audit trail can always
// resolve its actor references.
type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PINHash     string     `json:"-"` // never serialised
	LockPINHash string     `json:"-"` // never serialised
	IsAdmin     bool       `json:"is_admin"`
	IsDuress    bool       `json:"is_duress"`
	Enabled     bool       `json:"enabled"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email,omitempty"`
	UseCount    int        `json:"use_count"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Verification is the outcome of a successful PIN check. Duress mirrors
// the matched record's IsDuress flag.
type Verification struct {
	User   *User
	Duress bool
}

// FailedAttempt is one row in the rolling failed-attempt ledger. The
// attempted code itself is never stored.
type FailedAttempt struct {
	ID          int64
	Source      string
	AttemptedAt time.Time
}

// Sentinel errors for auth operations.
//
// There is deliberately no "locked out" error: while the lockout window
// is saturated, Verify returns ErrInvalidPIN so an attacker probing the
// keypad cannot tell the lockout exists.
var (
	ErrInvalidPIN   = errors.New("invalid PIN")
	ErrNotAdmin     = errors.New("admin authentication required")
	ErrNoLockAccess = errors.New("no access to this lock")
	ErrUserNotFound = errors.New("user not found")
	ErrNameExists   = errors.New("user name already exists")
	ErrBadPINFormat = errors.New("PIN must be 6-8 digits")
)
