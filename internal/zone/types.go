package zone

import (
	"errors"
	"time"
)

// Type classifies how a zone participates in alarm decisions.
type Type string

const (
	// TypePerimeter covers the shell of the building: door and window
	// contacts, glass-break sensors. Triggers immediately when armed.
	TypePerimeter Type = "perimeter"

	// TypeInterior covers motion inside the building. Typically inactive
	// in home mode so occupants can move around.
	TypeInterior Type = "interior"

	// TypeEntry covers designated entry routes (front door). Starts the
	// entry delay instead of triggering immediately.
	TypeEntry Type = "entry"
)

// ValidTypes is the set of recognised zone types.
var ValidTypes = []Type{TypePerimeter, TypeInterior, TypeEntry}

// IsValidType returns true if t is a recognised zone type.
func IsValidType(t Type) bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Zone is a monitored sensor circuit. The ID is the external sensor
// identifier assigned by whatever bridge registered the zone.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type Type   `json:"type"`

	// ActiveHome / ActiveAway control whether the zone participates in
	// the respective armed mode.
	ActiveHome bool `json:"active_home"`
	ActiveAway bool `json:"active_away"`

	// Bypassed excludes the zone from alarm decisions. BypassedUntil,
	// when set, bounds the bypass: past that moment the zone counts as
	// live again. Expiry is lazy; nothing fires when the moment passes,
	// the next read clears the flag. A nil BypassedUntil means the
	// bypass holds until disarm.
	Bypassed      bool       `json:"bypassed"`
	BypassedUntil *time.Time `json:"bypassed_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BypassedAt reports whether the zone is bypassed at the given instant.
func (z *Zone) BypassedAt(now time.Time) bool {
	if !z.Bypassed {
		return false
	}
	return z.BypassedUntil == nil || now.Before(*z.BypassedUntil)
}

// Sentinel errors for zone operations.
var (
	ErrZoneNotFound = errors.New("zone not found")
	ErrInvalidType  = errors.New("invalid zone type")
)
