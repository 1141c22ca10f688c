package event

import "time"

// Type identifies what happened. These values are stable: they appear in
// the audit log, on the MQTT event topic, and drive monitoring codes.
type Type string

const (
	TypeArmedAway    Type = "armed_away"
	TypeArmedHome    Type = "armed_home"
	TypeArming       Type = "arming"
	TypeDisarmed     Type = "disarmed"
	TypeEntryDelay   Type = "entry_delay"
	TypeTriggered    Type = "triggered"
	TypeAlarmTimeout Type = "alarm_timeout"
	TypeDuress       Type = "duress"
	TypeZoneBypassed Type = "zone_bypassed"
	TypeAuthFailed   Type = "auth_failed"
	TypeUserAdded    Type = "user_added"
	TypeUserUpdated  Type = "user_updated"
	TypeUserRemoved  Type = "user_removed"
	TypeConfigChange Type = "config_changed"
)

// Event is one row in the append-only audit log. Rows are never updated
// or deleted.
//
// Actor is the authenticated user's display name at the time of the
// event; UserID survives renames. StateFrom/StateTo are set on alarm
// transitions. Duress marks records produced under a duress credential —
// the flag lives only in this log and the monitoring relay, never on a
// user-visible surface.
type Event struct {
	ID        int64          `json:"id"`
	Type      Type           `json:"type"`
	Actor     string         `json:"actor,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	StateFrom string         `json:"state_from,omitempty"`
	StateTo   string         `json:"state_to,omitempty"`
	ZoneID    string         `json:"zone_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Duress    bool           `json:"duress,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
