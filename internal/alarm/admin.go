package alarm

import (
	"context"
	"time"

	"github.com/sentinelsec/sentinel-core/internal/auth"
	"github.com/sentinelsec/sentinel-core/internal/event"
)

// Admin-gated operations. Unlike alarm commands these return errors:
// auth.ErrInvalidPIN and auth.ErrNotAdmin are the expected refusals and
// the API layer translates them into uniform responses.
//
// Every operation here verifies the caller's admin PIN itself; there
// are no sessions to steal.

// AddUserParams describes a credential record to create.
type AddUserParams struct {
	AdminPIN string
	Name     string
	PIN      string
	LockPIN  string
	IsAdmin  bool
	IsDuress bool
	Phone    string
	Email    string
}

// AddUser creates a credential record.
//
// Bootstrap rule: when no users exist yet there is nobody who could
// authorise the creation, so the first user is created without an admin
// PIN and is forced to be an administrator.
func (m *Machine) AddUser(ctx context.Context, p AddUserParams, source string) (*auth.User, error) {
	count, err := m.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	actor := "system"
	if count > 0 {
		v, err := m.guard.VerifyAdmin(ctx, p.AdminPIN, source)
		if err != nil {
			return nil, err
		}
		actor = v.User.Name
		m.dispatch(m.lockedDuress(v))
	} else {
		p.IsAdmin = true
	}

	if !auth.IsValidPIN(p.PIN) {
		return nil, auth.ErrBadPINFormat
	}
	if p.LockPIN != "" && !auth.IsValidPIN(p.LockPIN) {
		return nil, auth.ErrBadPINFormat
	}

	pinHash, err := auth.HashPIN(p.PIN)
	if err != nil {
		return nil, err
	}
	var lockHash string
	if p.LockPIN != "" {
		if lockHash, err = auth.HashPIN(p.LockPIN); err != nil {
			return nil, err
		}
	}

	u := &auth.User{
		Name:        p.Name,
		PINHash:     pinHash,
		LockPINHash: lockHash,
		IsAdmin:     p.IsAdmin,
		IsDuress:    p.IsDuress,
		Phone:       p.Phone,
		Email:       p.Email,
	}
	if err := m.users.Create(ctx, u); err != nil {
		return nil, err
	}

	m.events.Log(event.Event{
		Type:    event.TypeUserAdded,
		Actor:   actor,
		UserID:  u.ID,
		Details: map[string]any{"name": u.Name, "is_admin": u.IsAdmin},
	})
	return u, nil
}

// UpdateUserParams carries the mutable fields of a credential record.
// Nil pointers leave the field unchanged.
type UpdateUserParams struct {
	AdminPIN string
	UserID   string
	Name     *string
	PIN      *string
	LockPIN  *string
	IsAdmin  *bool
	IsDuress *bool
	Phone    *string
	Email    *string
}

// UpdateUser modifies a credential record.
func (m *Machine) UpdateUser(ctx context.Context, p UpdateUserParams, source string) (*auth.User, error) {
	v, err := m.guard.VerifyAdmin(ctx, p.AdminPIN, source)
	if err != nil {
		return nil, err
	}
	m.dispatch(m.lockedDuress(v))

	u, err := m.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
	if p.IsDuress != nil {
		u.IsDuress = *p.IsDuress
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if err := m.users.Update(ctx, u); err != nil {
		return nil, err
	}

	if p.PIN != nil {
		if !auth.IsValidPIN(*p.PIN) {
			return nil, auth.ErrBadPINFormat
		}
		hash, err := auth.HashPIN(*p.PIN)
		if err != nil {
			return nil, err
		}
		if err := m.users.UpdatePIN(ctx, u.ID, hash); err != nil {
			return nil, err
		}
	}
	if p.LockPIN != nil {
		hash := ""
		if *p.LockPIN != "" {
			if !auth.IsValidPIN(*p.LockPIN) {
				return nil, auth.ErrBadPINFormat
			}
			if hash, err = auth.HashPIN(*p.LockPIN); err != nil {
				return nil, err
			}
		}
		if err := m.users.UpdateLockPIN(ctx, u.ID, hash); err != nil {
			return nil, err
		}
	}

	m.events.Log(event.Event{
		Type:    event.TypeUserUpdated,
		Actor:   v.User.Name,
		UserID:  u.ID,
		Details: map[string]any{"name": u.Name},
	})
	return u, nil
}

// RemoveUser disables a credential record. The row stays so the audit
// log keeps resolving its references.
func (m *Machine) RemoveUser(ctx context.Context, adminPIN, userID, source string) error {
	v, err := m.guard.VerifyAdmin(ctx, adminPIN, source)
	if err != nil {
		return err
	}
	m.dispatch(m.lockedDuress(v))

	if err := m.users.SetEnabled(ctx, userID, false); err != nil {
		return err
	}

	m.events.Log(event.Event{
		Type:   event.TypeUserRemoved,
		Actor:  v.User.Name,
		UserID: userID,
	})
	return nil
}

// ListUsers returns all credential records for administration surfaces.
// Hashes never serialise, so this is safe to expose as-is.
func (m *Machine) ListUsers(ctx context.Context) ([]auth.User, error) {
	return m.users.List(ctx)
}

// BypassZone excludes a zone from trip evaluation, or reinstates it.
// A positive duration bounds the bypass; zero holds it until disarm.
func (m *Machine) BypassZone(ctx context.Context, adminPIN, zoneID string, bypassed bool, d time.Duration, source string) error {
	v, err := m.guard.VerifyAdmin(ctx, adminPIN, source)
	if err != nil {
		return err
	}
	m.dispatch(m.lockedDuress(v))

	if err := m.zones.SetBypass(ctx, zoneID, bypassed, d); err != nil {
		return err
	}

	details := map[string]any{"bypassed": bypassed}
	if d > 0 {
		details["duration_seconds"] = int(d.Seconds())
	}
	m.events.Log(event.Event{
		Type:    event.TypeZoneBypassed,
		Actor:   v.User.Name,
		UserID:  v.User.ID,
		ZoneID:  zoneID,
		Details: details,
	})
	return nil
}

// UpdateSettings replaces the alarm timing configuration.
func (m *Machine) UpdateSettings(ctx context.Context, adminPIN string, s *Settings, source string) error {
	v, err := m.guard.VerifyAdmin(ctx, adminPIN, source)
	if err != nil {
		return err
	}
	m.dispatch(m.lockedDuress(v))

	if err := m.settings.Update(ctx, s); err != nil {
		return err
	}

	m.events.Log(event.Event{
		Type:   event.TypeConfigChange,
		Actor:  v.User.Name,
		UserID: v.User.ID,
		Details: map[string]any{
			"entry_delay":    s.EntryDelay,
			"exit_delay":     s.ExitDelay,
			"alarm_duration": s.AlarmDuration,
		},
	})
	return nil
}

// Settings returns the current alarm timing configuration.
func (m *Machine) Settings(ctx context.Context) (*Settings, error) {
	return m.settings.Get(ctx)
}

// GrantLockAccess lets a user operate a lock with their lock PIN.
func (m *Machine) GrantLockAccess(ctx context.Context, adminPIN, userID, lockID, source string) error {
	v, err := m.guard.VerifyAdmin(ctx, adminPIN, source)
	if err != nil {
		return err
	}
	m.dispatch(m.lockedDuress(v))

	if _, err := m.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := m.locks.Grant(ctx, userID, lockID); err != nil {
		return err
	}

	m.events.Log(event.Event{
		Type:    event.TypeUserUpdated,
		Actor:   v.User.Name,
		UserID:  userID,
		Details: map[string]any{"lock_access_granted": lockID},
	})
	return nil
}

// RevokeLockAccess removes a user's grant for a lock.
func (m *Machine) RevokeLockAccess(ctx context.Context, adminPIN, userID, lockID, source string) error {
	v, err := m.guard.VerifyAdmin(ctx, adminPIN, source)
	if err != nil {
		return err
	}
	m.dispatch(m.lockedDuress(v))

	if err := m.locks.Revoke(ctx, userID, lockID); err != nil {
		return err
	}

	m.events.Log(event.Event{
		Type:    event.TypeUserUpdated,
		Actor:   v.User.Name,
		UserID:  userID,
		Details: map[string]any{"lock_access_revoked": lockID},
	})
	return nil
}

// lockedDuress is queueDuress for paths that never held the machine
// mutex. Same single-event, single-signal guarantee.
func (m *Machine) lockedDuress(v *auth.Verification) []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueDuress(v)
}
