package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
)

// Guard performs PIN authentication with a system-wide rolling lockout.
//
// Lockout semantics:
//   - Every failed PIN attempt is recorded in the ledger, regardless of
//     which user (if any) it was aimed at.
//   - When the ledger holds maxAttempts or more failures inside the
//     rolling window, ALL authentication is refused, including attempts
//     with a correct PIN. The refusal is returned as ErrInvalidPIN so a
//     caller cannot tell lockout from a wrong code.
//   - The lockout has no explicit expiry; it ends when enough failures
//     age past the window.
//   - Any successful authentication clears the entire ledger, not just
//     rows tied to the matched user.
//
// Thread Safety:
//   - Verify and its variants serialise on an internal mutex so the
//     check-count/record sequence is atomic across callers and the
//     threshold cannot be raced past.
type Guard struct {
	users    UserRepository
	attempts AttemptRepository
	locks    LockAccessRepository
	logger   *logging.Logger

	maxAttempts int
	window      time.Duration

	// now is replaceable in tests.
	now func() time.Time

	mu sync.Mutex
}

// NewGuard creates a Guard with the given repositories and lockout policy.
func NewGuard(
	users UserRepository,
	attempts AttemptRepository,
	locks LockAccessRepository,
	maxAttempts int,
	window time.Duration,
	logger *logging.Logger,
) *Guard {
	return &Guard{
		users:       users,
		attempts:    attempts,
		locks:       locks,
		logger:      logger.With("component", "auth"),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// Verify authenticates a PIN against all enabled credential records.
//
// source identifies where the attempt came from (keypad ID, "api", …) and
// is recorded in the ledger for audit purposes. The attempted code itself
// is never stored.
//
// Returns:
//   - *Verification: The matched user and whether it is a duress credential
//   - error: ErrInvalidPIN for a wrong code AND while locked out — the
//     two cases are indistinguishable by design
func (g *Guard) Verify(ctx context.Context, pin, source string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.verifyLocked(ctx, pin, source)
}

// VerifyAny authenticates a code against both the alarm PINs and the
// lock PINs of enabled users, matching alarm PINs first. Used for
// disarm, where a resident entering through a coded lock should not
// need a second credential. A total miss records exactly one failed
// attempt.
func (g *Guard) VerifyAny(ctx context.Context, pin, source string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if locked, err := g.lockedOut(ctx, now); err != nil {
		return nil, err
	} else if locked {
		g.logger.Warn("authentication refused: locked out", "source", source)
		return nil, ErrInvalidPIN
	}

	users, err := g.users.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	for i := range users {
		u := &users[i]
		if match, err := VerifyPIN(pin, u.PINHash); err == nil && match {
			return g.succeed(ctx, u)
		}
	}
	for i := range users {
		u := &users[i]
		if u.LockPINHash == "" {
			continue
		}
		if match, err := VerifyPIN(pin, u.LockPINHash); err == nil && match {
			return g.succeed(ctx, u)
		}
	}

	if err := g.recordFailure(ctx, source, now); err != nil {
		return nil, err
	}
	g.logger.Warn("authentication failed", "source", source)
	return nil, ErrInvalidPIN
}

// VerifyAdmin authenticates a PIN and requires the matched credential to
// be an administrator.
//
// A wrong PIN counts toward the lockout ledger as usual. A correct PIN
// from a non-admin user returns ErrNotAdmin and does NOT count as a
// failed attempt: the person proved who they are, they just lack the
// privilege. The success still clears the ledger and bumps usage.
func (g *Guard) VerifyAdmin(ctx context.Context, pin, source string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, err := g.verifyLocked(ctx, pin, source)
	if err != nil {
		return nil, err
	}
	if !v.User.IsAdmin {
		g.logger.Warn("admin authorization refused",
			"user_id", v.User.ID,
			"source", source,
		)
		return nil, ErrNotAdmin
	}
	return v, nil
}

// VerifyLockPIN authenticates a lock code for operating a smart lock.
//
// Users carrying a separate lock PIN are matched against that hash; the
// matched user must also hold an access grant for the lock. Shares the
// failed-attempt ledger and lockout window with alarm authentication.
func (g *Guard) VerifyLockPIN(ctx context.Context, pin, lockID, source string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if locked, err := g.lockedOut(ctx, now); err != nil {
		return nil, err
	} else if locked {
		g.logger.Warn("lock authentication refused: locked out", "source", source)
		return nil, ErrInvalidPIN
	}

	users, err := g.users.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	for i := range users {
		u := &users[i]
		if u.LockPINHash == "" {
			continue
		}
		match, err := VerifyPIN(pin, u.LockPINHash)
		if err != nil || !match {
			continue
		}

		ok, err := g.locks.HasAccess(ctx, u.ID, lockID)
		if err != nil {
			return nil, err
		}
		if !ok {
			g.logger.Warn("lock access refused",
				"user_id", u.ID,
				"lock_id", lockID,
			)
			return nil, ErrNoLockAccess
		}
		return g.succeed(ctx, u)
	}

	if err := g.recordFailure(ctx, source, now); err != nil {
		return nil, err
	}
	return nil, ErrInvalidPIN
}

// LockedOut reports whether authentication is currently refused. For
// status introspection only; Verify never exposes this to its caller.
func (g *Guard) LockedOut(ctx context.Context) (bool, error) {
	return g.lockedOut(ctx, g.now())
}

func (g *Guard) lockedOut(ctx context.Context, now time.Time) (bool, error) {
	count, err := g.attempts.CountSince(ctx, now.Add(-g.window))
	if err != nil {
		return false, err
	}
	return count >= g.maxAttempts, nil
}

// verifyLocked performs the check-lockout, match-PIN, record-outcome
// sequence. Caller must hold g.mu.
func (g *Guard) verifyLocked(ctx context.Context, pin, source string) (*Verification, error) {
	now := g.now()

	locked, err := g.lockedOut(ctx, now)
	if err != nil {
		return nil, err
	}
	if locked {
		g.logger.Warn("authentication refused: locked out", "source", source)
		return nil, ErrInvalidPIN
	}

	users, err := g.users.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	for i := range users {
		u := &users[i]
		match, err := VerifyPIN(pin, u.PINHash)
		if err == nil && match {
			return g.succeed(ctx, u)
		}
	}

	if err := g.recordFailure(ctx, source, now); err != nil {
		return nil, err
	}
	g.logger.Warn("authentication failed", "source", source)
	return nil, ErrInvalidPIN
}

// recordFailure appends to the ledger and prunes rows that aged past
// the window; they can never influence a lockout decision again and
// would otherwise accumulate forever.
func (g *Guard) recordFailure(ctx context.Context, source string, now time.Time) error {
	if err := g.attempts.Record(ctx, source, now); err != nil {
		return err
	}
	if err := g.attempts.PruneBefore(ctx, now.Add(-g.window)); err != nil {
		g.logger.Error("failed to prune attempt ledger", "error", err)
	}
	return nil
}

// succeed clears the ledger, bumps usage, and builds the verification.
func (g *Guard) succeed(ctx context.Context, u *User) (*Verification, error) {
	if err := g.attempts.ClearAll(ctx); err != nil {
		return nil, err
	}
	if err := g.users.RecordUse(ctx, u.ID, g.now()); err != nil {
		g.logger.Error("failed to record credential use", "user_id", u.ID, "error", err)
	}
	// Duress is deliberately not logged here: log output may be visible
	// on premises displays.
	g.logger.Info("authentication succeeded", "user_id", u.ID)
	return &Verification{User: u, Duress: u.IsDuress}, nil
}

// IsAuthFailure reports whether err is an expected authentication refusal
// rather than an infrastructure fault.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidPIN) ||
		errors.Is(err, ErrNotAdmin) ||
		errors.Is(err, ErrNoLockAccess)
}
