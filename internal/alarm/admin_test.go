package alarm

import (
	"errors"
	"testing"

	"github.com/sentinelsec/sentinel-core/internal/auth"
)

func TestAddUserBootstrap(t *testing.T) {
	rig := newTestRig(t)

	// No users yet: no admin PIN exists, so none is required, and the
	// first account is forced to be an administrator.
	u, err := rig.machine.AddUser(t.Context(), AddUserParams{
		Name: "Alice",
		PIN:  "123456",
	}, "setup")
	if err != nil {
		t.Fatalf("bootstrap AddUser: %v", err)
	}
	if !u.IsAdmin {
		t.Error("first user is not an admin")
	}

	// Second user now needs an admin PIN.
	if _, err := rig.machine.AddUser(t.Context(), AddUserParams{
		Name: "Bob",
		PIN:  "222222",
	}, "api"); !errors.Is(err, auth.ErrInvalidPIN) {
		t.Errorf("AddUser without admin PIN: err = %v, want ErrInvalidPIN", err)
	}

	if _, err := rig.machine.AddUser(t.Context(), AddUserParams{
		AdminPIN: "123456",
		Name:     "Bob",
		PIN:      "222222",
	}, "api"); err != nil {
		t.Fatalf("AddUser with admin PIN: %v", err)
	}
}

func TestAddUserRejectsNonAdmin(t *testing.T) {
	rig := newTestRig(t)
	rig.seedUser(t, &auth.User{Name: "Alice", IsAdmin: true}, "123456")
	rig.seedUser(t, &auth.User{Name: "Bob"}, "222222")

	_, err := rig.machine.AddUser(t.Context(), AddUserParams{
		AdminPIN: "222222",
		Name:     "Carol",
		PIN:      "333333",
	}, "api")
	if !errors.Is(err, auth.ErrNotAdmin) {
		t.Errorf("err = %v, want ErrNotAdmin", err)
	}
}

func TestAddUserRejectsBadPINFormat(t *testing.T) {
	rig := newTestRig(t)

	for _, pin := range []string{"12345", "123456789", "12ab56", ""} {
		if _, err := rig.machine.AddUser(t.Context(), AddUserParams{
			Name: "Alice",
			PIN:  pin,
		}, "setup"); !errors.Is(err, auth.ErrBadPINFormat) {
			t.Errorf("PIN %q: err = %v, want ErrBadPINFormat", pin, err)
		}
	}
}

func TestRemoveUserIsSoftDelete(t *testing.T) {
	rig := newTestRig(t)
	rig.seedUser(t, &auth.User{Name: "Alice", IsAdmin: true}, "123456")
	bob := rig.seedUser(t, &auth.User{Name: "Bob"}, "222222")

	if err := rig.machine.RemoveUser(t.Context(), "123456", bob.ID, "api"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}

	// Bob's PIN stops working.
	res := rig.machine.ArmHome(t.Context(), "222222", "keypad")
	if res.Success {
		t.Error("removed user's PIN still authenticates")
	}

	// But the record is still there for the audit trail.
	users, err := rig.machine.ListUsers(t.Context())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	found := false
	for _, u := range users {
		if u.ID == bob.ID {
			found = true
			if u.Enabled {
				t.Error("removed user is still enabled")
			}
		}
	}
	if !found {
		t.Error("removed user vanished from the user list")
	}
}

func TestUpdateUserChangesPIN(t *testing.T) {
	rig := newTestRig(t)
	rig.seedUser(t, &auth.User{Name: "Alice", IsAdmin: true}, "123456")
	bob := rig.seedUser(t, &auth.User{Name: "Bob"}, "222222")

	newPIN := "888888"
	newName := "Robert"
	if _, err := rig.machine.UpdateUser(t.Context(), UpdateUserParams{
		AdminPIN: "123456",
		UserID:   bob.ID,
		Name:     &newName,
		PIN:      &newPIN,
	}, "api"); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if res := rig.machine.ArmHome(t.Context(), "888888", "keypad"); !res.Success {
		t.Errorf("new PIN refused: %s", res.Message)
	}
	rig.machine.Disarm(t.Context(), "888888", "keypad")

	if res := rig.machine.ArmHome(t.Context(), "222222", "keypad"); res.Success {
		t.Error("old PIN still works after change")
	}

	u, err := rig.users.GetByID(t.Context(), bob.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u.Name != "Robert" {
		t.Errorf("Name = %q, want Robert", u.Name)
	}
}

func TestUpdateSettings(t *testing.T) {
	rig := newTestRig(t)
	rig.seedUser(t, &auth.User{Name: "Alice", IsAdmin: true}, "123456")
	rig.seedUser(t, &auth.User{Name: "Bob"}, "222222")

	s := &Settings{EntryDelay: 45, ExitDelay: 90, AlarmDuration: 600, NotifyOnTrigger: true}

	if err := rig.machine.UpdateSettings(t.Context(), "222222", s, "api"); !errors.Is(err, auth.ErrNotAdmin) {
		t.Errorf("non-admin UpdateSettings: err = %v, want ErrNotAdmin", err)
	}

	if err := rig.machine.UpdateSettings(t.Context(), "123456", s, "api"); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	got, err := rig.machine.Settings(t.Context())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if got.EntryDelay != 45 || got.ExitDelay != 90 || got.AlarmDuration != 600 {
		t.Errorf("settings = %+v", got)
	}

	// The new exit delay drives the next arm.
	res := rig.machine.ArmAway(t.Context(), "123456", "keypad")
	if res.Delay != 90 {
		t.Errorf("Delay = %d, want 90", res.Delay)
	}
}

func TestBypassZoneRequiresAdmin(t *testing.T) {
	rig := newTestRig(t)
	rig.seedUser(t, &auth.User{Name: "Bob"}, "222222")
	rig.seedZone(t, "garage_window", "Garage Window", "perimeter", true, true)

	err := rig.machine.BypassZone(t.Context(), "222222", "garage_window", true, 0, "api")
	if !errors.Is(err, auth.ErrNotAdmin) {
		t.Errorf("err = %v, want ErrNotAdmin", err)
	}
}

func TestLockAccessGrantAndRevoke(t *testing.T) {
	rig := newTestRig(t)
	rig.seedUser(t, &auth.User{Name: "Alice", IsAdmin: true}, "123456")
	bob := rig.seedUser(t, &auth.User{Name: "Bob"}, "222222")

	if err := rig.machine.GrantLockAccess(t.Context(), "123456", bob.ID, "front_lock", "api"); err != nil {
		t.Fatalf("GrantLockAccess: %v", err)
	}
	if err := rig.machine.RevokeLockAccess(t.Context(), "123456", bob.ID, "front_lock", "api"); err != nil {
		t.Fatalf("RevokeLockAccess: %v", err)
	}

	if err := rig.machine.GrantLockAccess(t.Context(), "123456", "usr-missing", "front_lock", "api"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("grant for unknown user: err = %v, want ErrUserNotFound", err)
	}
}
