package alarm

import "time"

// State is the alarm's externally visible mode.
type State string

const (
	// StateDisarmed is the resting state. Zone trips are ignored.
	StateDisarmed State = "disarmed"

	// StateArming is the exit-delay countdown after arm-away; the
	// system becomes ArmedAway when it elapses without a disarm.
	StateArming State = "arming"

	// StateArmedHome monitors the perimeter while occupants are inside.
	StateArmedHome State = "armed_home"

	// StateArmedAway monitors everything.
	StateArmedAway State = "armed_away"

	// StatePending is the entry-delay countdown after an entry zone
	// trips; a correct disarm prevents triggering.
	StatePending State = "pending"

	// StateTriggered is the alarm condition. Exited only by disarm.
	StateTriggered State = "triggered"
)

// Armed reports whether zone trips are evaluated in this state.
func (s State) Armed() bool {
	return s == StateArmedHome || s == StateArmedAway
}

// Result is the structured outcome of a command. Commands never return
// errors for authentication or validation failures — failures are data.
//
// Delay carries the exit-delay seconds on a successful arm-away so the
// caller can count down.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	State   State  `json:"state"`
	Delay   int    `json:"delay,omitempty"`
}

// Stable failure messages. A wrong PIN and a lockout produce the same
// message so callers cannot probe the lockout window.
const (
	msgInvalidCode   = "invalid code"
	msgAdminRequired = "admin authentication required"
	msgInternalError = "internal error"
)

// Subscriber receives notifications after committed transitions, in
// registration order, synchronously. Implementations must return
// quickly; slow work belongs on the subscriber's own goroutine.
type Subscriber interface {
	// StateChanged fires on every externally visible state transition.
	StateChanged(prev, next State, actor string)

	// Armed fires when the system reaches ArmedHome or ArmedAway.
	Armed(mode State, actor string)

	// Disarmed fires on every successful disarm.
	Disarmed(actor string)

	// Triggered fires exactly once per alarm condition.
	Triggered(zoneID, zoneName string)

	// DuressUsed fires once per authentication made with a duress
	// credential. Route this only to silent channels.
	DuressUsed(actor string, at time.Time)
}

// NopSubscriber implements Subscriber with no-ops, for embedding when
// only some notifications are interesting.
type NopSubscriber struct{}

func (NopSubscriber) StateChanged(prev, next State, actor string) {}
func (NopSubscriber) Armed(mode State, actor string)              {}
func (NopSubscriber) Disarmed(actor string)                       {}
func (NopSubscriber) Triggered(zoneID, zoneName string)           {}
func (NopSubscriber) DuressUsed(actor string, at time.Time)       {}
