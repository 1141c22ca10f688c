package alarm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sentinelsec/sentinel-core/internal/auth"
	"github.com/sentinelsec/sentinel-core/internal/event"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
	"github.com/sentinelsec/sentinel-core/internal/monitoring"
	"github.com/sentinelsec/sentinel-core/internal/zone"
)

// ManualZoneID is the synthetic zone recorded for panic triggers that
// did not come from a sensor.
const ManualZoneID = "manual"

// Deps collects everything the state machine coordinates.
type Deps struct {
	Guard    *auth.Guard
	Users    auth.UserRepository
	Locks    auth.LockAccessRepository
	Zones    *zone.Registry
	Events   *event.Appender
	Settings SettingsRepository
	Monitor  *monitoring.Service
	Logger   *logging.Logger

	// Clock defaults to the real clock when nil.
	Clock Clock
}

// Machine is the alarm state machine. It owns the current state, the
// delay timers, and the fan-out to subscribers, audit log and the
// monitoring relay.
//
// All transitions happen under one mutex; timer callbacks carry a
// generation number taken when the timer was armed, so a callback from
// a superseded timer finds a stale generation and does nothing. This
// makes cancel-then-reschedule races harmless without needing to win
// them.
//
// Subscribers are notified synchronously, in registration order, after
// a transition has been committed — but outside the mutex, so a
// subscriber may call back into the machine.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
type Machine struct {
	guard    *auth.Guard
	users    auth.UserRepository
	locks    auth.LockAccessRepository
	zones    *zone.Registry
	events   *event.Appender
	settings SettingsRepository
	monitor  *monitoring.Service
	logger   *logging.Logger
	clock    Clock

	mu    sync.Mutex
	state State

	// armActor is who last armed the system; shown in status and used
	// when a timer, not a person, completes the transition.
	armActor  string
	armUserID string

	// armedMode remembers which armed state the system reached, so
	// PENDING and TRIGGERED still know which participation flags apply.
	armedMode State

	// triggeredBy records the zone that caused PENDING or TRIGGERED.
	triggeredByID   string
	triggeredByName string

	exitGen, entryGen, alarmGen uint64
	exitTimer, entryTimer       Timer
	alarmTimer                  Timer

	subscribers []Subscriber
}

// NewMachine creates the state machine in the disarmed state.
func NewMachine(d Deps) *Machine {
	clock := d.Clock
	if clock == nil {
		clock = NewClock()
	}
	return &Machine{
		guard:    d.Guard,
		users:    d.Users,
		locks:    d.Locks,
		zones:    d.Zones,
		events:   d.Events,
		settings: d.Settings,
		monitor:  d.Monitor,
		logger:   d.Logger.With("component", "alarm"),
		clock:    clock,
		state:    StateDisarmed,
	}
}

// Subscribe registers a notification receiver. Not safe to call
// concurrently with transitions; wire subscribers during startup.
func (m *Machine) Subscribe(s Subscriber) {
	m.subscribers = append(m.subscribers, s)
}

// Status is a point-in-time snapshot of the machine.
type Status struct {
	State       State  `json:"state"`
	ArmedBy     string `json:"armed_by,omitempty"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// Status returns the current state snapshot.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:       m.state,
		ArmedBy:     m.armActor,
		TriggeredBy: m.triggeredByName,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ArmAway arms the full system. The transition goes through an
// exit-delay countdown (ARMING) unless the configured exit delay is
// zero. The returned Delay tells the caller how long they have to
// leave.
func (m *Machine) ArmAway(ctx context.Context, pin, source string) Result {
	v, err := m.guard.Verify(ctx, pin, source)
	if err != nil {
		return m.authFailure(err, "arm_away", source)
	}

	cfg, err := m.settings.Get(ctx)
	if err != nil {
		m.logger.Error("failed to load settings", "error", err)
		return Result{Success: false, Message: msgInternalError, State: m.State()}
	}

	m.mu.Lock()
	if m.state != StateDisarmed {
		state := m.state
		notify := m.queueDuress(v)
		m.mu.Unlock()
		m.dispatch(notify)
		return Result{Success: false, Message: "system is not disarmed", State: state}
	}

	m.armActor = v.User.Name
	m.armUserID = v.User.ID

	var notify []func()
	message := "arming"
	if cfg.ExitDelay <= 0 {
		notify = m.commitArmed(StateDisarmed, StateArmedAway, v.User.Name, v.User.ID, v.Duress)
		message = "armed away"
	} else {
		m.setState(StateArming)
		m.exitGen++
		gen := m.exitGen
		m.exitTimer = m.clock.AfterFunc(time.Duration(cfg.ExitDelay)*time.Second, func() {
			m.exitElapsed(gen)
		})

		m.events.Log(event.Event{
			Type:      event.TypeArming,
			Actor:     v.User.Name,
			UserID:    v.User.ID,
			StateFrom: string(StateDisarmed),
			StateTo:   string(StateArming),
			Duress:    v.Duress,
			Details:   map[string]any{"exit_delay": cfg.ExitDelay},
		})
		notify = m.queueStateChanged(StateDisarmed, StateArming, v.User.Name)
		go m.monitor.Send(monitoring.EventArmAway, "", v.User.Name, nil)
	}
	notify = append(notify, m.queueDuress(v)...)
	m.mu.Unlock()

	m.dispatch(notify)
	return Result{Success: true, Message: message, State: m.State(), Delay: cfg.ExitDelay}
}

// ArmHome arms the perimeter immediately, with no exit delay.
func (m *Machine) ArmHome(ctx context.Context, pin, source string) Result {
	v, err := m.guard.Verify(ctx, pin, source)
	if err != nil {
		return m.authFailure(err, "arm_home", source)
	}

	m.mu.Lock()
	if m.state != StateDisarmed {
		state := m.state
		notify := m.queueDuress(v)
		m.mu.Unlock()
		m.dispatch(notify)
		return Result{Success: false, Message: "system is not disarmed", State: state}
	}

	m.armActor = v.User.Name
	m.armUserID = v.User.ID
	notify := m.commitArmed(StateDisarmed, StateArmedHome, v.User.Name, v.User.ID, v.Duress)
	notify = append(notify, m.queueDuress(v)...)
	m.mu.Unlock()

	m.dispatch(notify)
	return Result{Success: true, Message: "armed home", State: StateArmedHome}
}

// Disarm returns the system to DISARMED from any armed, pending,
// arming or triggered state. Accepts an alarm PIN or a lock PIN, since
// a resident entering through a coded lock already proved who they
// are. All delay timers are cancelled and zone bypasses are cleared.
func (m *Machine) Disarm(ctx context.Context, code, source string) Result {
	v, err := m.guard.VerifyAny(ctx, code, source)
	if err != nil {
		return m.authFailure(err, "disarm", source)
	}

	m.mu.Lock()
	if m.state == StateDisarmed {
		notify := m.queueDuress(v)
		m.mu.Unlock()
		m.dispatch(notify)
		return Result{Success: true, Message: "already disarmed", State: StateDisarmed}
	}

	prev := m.state
	m.cancelTimers()
	m.setState(StateDisarmed)
	m.armActor = ""
	m.armUserID = ""
	m.armedMode = ""
	m.triggeredByID = ""
	m.triggeredByName = ""

	m.events.Log(event.Event{
		Type:      event.TypeDisarmed,
		Actor:     v.User.Name,
		UserID:    v.User.ID,
		StateFrom: string(prev),
		StateTo:   string(StateDisarmed),
		Duress:    v.Duress,
	})

	notify := m.queueStateChanged(prev, StateDisarmed, v.User.Name)
	actor := v.User.Name
	notify = append(notify, func() {
		for _, s := range m.subscribers {
			s.Disarmed(actor)
		}
	})
	notify = append(notify, m.queueDuress(v)...)
	m.mu.Unlock()

	if err := m.zones.ClearAllBypasses(ctx); err != nil {
		m.logger.Error("failed to clear bypasses on disarm", "error", err)
	}
	go m.monitor.Send(monitoring.EventDisarm, "", v.User.Name, nil)

	m.dispatch(notify)
	return Result{Success: true, Message: "disarmed", State: StateDisarmed}
}

// ZoneTriggered evaluates a sensor trip. Trips are ignored while
// DISARMED (nothing to protect), TRIGGERED (already as bad as it gets)
// and ARMING (the occupants are leaving). While armed, entry zones
// start the entry delay and everything else triggers immediately.
// While PENDING, any further trip triggers immediately: the entry
// delay is a chance to reach the keypad, not to roam the premises.
// Bypassed zones and zones inactive in the current mode never count.
func (m *Machine) ZoneTriggered(ctx context.Context, zoneID string) {
	m.mu.Lock()
	state := m.state
	armedMode := m.armedMode
	m.mu.Unlock()

	if !state.Armed() && state != StatePending {
		return
	}

	z, err := m.zones.Get(ctx, zoneID)
	if err != nil {
		if errors.Is(err, zone.ErrZoneNotFound) {
			m.logger.Warn("trip from unknown zone", "zone_id", zoneID)
		} else {
			m.logger.Error("failed to load zone", "zone_id", zoneID, "error", err)
		}
		return
	}

	mode := zone.ModeHome
	if armedMode == StateArmedAway {
		mode = zone.ModeAway
	}
	if !m.zones.IsActive(ctx, z, mode) {
		m.logger.Debug("inactive zone trip ignored",
			"zone_id", zoneID,
			"mode", string(mode),
		)
		return
	}

	cfg, err := m.settings.Get(ctx)
	if err != nil {
		m.logger.Error("failed to load settings", "error", err)
		return
	}

	m.mu.Lock()
	// Re-check under the lock; a disarm may have landed meanwhile.
	if !m.state.Armed() && m.state != StatePending {
		m.mu.Unlock()
		return
	}

	var notify []func()
	if m.state == StatePending {
		notify = m.trigger(z.ID, z.Name, cfg.AlarmDuration)
	} else if z.Type == zone.TypeEntry && cfg.EntryDelay > 0 {
		prev := m.state
		m.setState(StatePending)
		m.triggeredByID = z.ID
		m.triggeredByName = z.Name
		m.entryGen++
		gen := m.entryGen
		m.entryTimer = m.clock.AfterFunc(time.Duration(cfg.EntryDelay)*time.Second, func() {
			m.entryElapsed(gen)
		})

		m.events.Log(event.Event{
			Type:      event.TypeEntryDelay,
			StateFrom: string(prev),
			StateTo:   string(StatePending),
			ZoneID:    z.ID,
			Details:   map[string]any{"zone_name": z.Name, "entry_delay": cfg.EntryDelay},
		})
		notify = m.queueStateChanged(prev, StatePending, "")
		go m.monitor.Send(monitoring.EventEntryDelay, z.ID, "", map[string]any{"zone_name": z.Name})
	} else {
		notify = m.trigger(z.ID, z.Name, cfg.AlarmDuration)
	}
	m.mu.Unlock()

	m.dispatch(notify)
}

// ManualTrigger raises the alarm immediately from any state. Panic
// buttons deliberately require no authentication.
func (m *Machine) ManualTrigger(ctx context.Context, source string) Result {
	cfg, err := m.settings.Get(ctx)
	if err != nil {
		m.logger.Error("failed to load settings", "error", err)
		return Result{Success: false, Message: msgInternalError, State: m.State()}
	}

	m.mu.Lock()
	if m.state == StateTriggered {
		m.mu.Unlock()
		return Result{Success: true, Message: "already triggered", State: StateTriggered}
	}
	notify := m.trigger(ManualZoneID, "manual trigger", cfg.AlarmDuration)
	m.mu.Unlock()

	m.logger.Warn("manual trigger", "source", source)
	m.dispatch(notify)
	return Result{Success: true, Message: "triggered", State: StateTriggered}
}

// --- timer callbacks ---

// exitElapsed completes ARMING -> ARMED_AWAY. A stale generation means
// the countdown was cancelled by a disarm; do nothing.
func (m *Machine) exitElapsed(gen uint64) {
	m.mu.Lock()
	if gen != m.exitGen || m.state != StateArming {
		m.mu.Unlock()
		return
	}
	notify := m.commitArmed(StateArming, StateArmedAway, m.armActor, m.armUserID, false)
	m.mu.Unlock()

	m.dispatch(notify)
}

// entryElapsed completes PENDING -> TRIGGERED when nobody disarmed in
// time.
func (m *Machine) entryElapsed(gen uint64) {
	cfg, err := m.settings.Get(context.Background())
	if err != nil {
		m.logger.Error("failed to load settings", "error", err)
		cfg = &Settings{AlarmDuration: 300}
	}

	m.mu.Lock()
	if gen != m.entryGen || m.state != StatePending {
		m.mu.Unlock()
		return
	}
	notify := m.trigger(m.triggeredByID, m.triggeredByName, cfg.AlarmDuration)
	m.mu.Unlock()

	m.dispatch(notify)
}

// alarmElapsed fires when the siren has sounded for the configured
// duration. The state stays TRIGGERED until someone disarms; this is
// an internal signal for sounders only.
func (m *Machine) alarmElapsed(gen uint64) {
	m.mu.Lock()
	if gen != m.alarmGen || m.state != StateTriggered {
		m.mu.Unlock()
		return
	}
	zoneID := m.triggeredByID
	m.mu.Unlock()

	m.logger.Info("alarm duration elapsed", "zone_id", zoneID)
	m.events.Log(event.Event{
		Type:   event.TypeAlarmTimeout,
		ZoneID: zoneID,
	})
}

// --- locked helpers (caller must hold m.mu) ---

// commitArmed performs the final transition into an armed state and
// queues the notifications.
func (m *Machine) commitArmed(prev, next State, actor, userID string, duress bool) []func() {
	m.setState(next)
	m.armedMode = next

	eventType := event.TypeArmedAway
	monType := monitoring.EventArmAway
	if next == StateArmedHome {
		eventType = event.TypeArmedHome
		monType = monitoring.EventArmHome
	}

	m.events.Log(event.Event{
		Type:      eventType,
		Actor:     actor,
		UserID:    userID,
		StateFrom: string(prev),
		StateTo:   string(next),
		Duress:    duress,
	})

	notify := m.queueStateChanged(prev, next, actor)
	notify = append(notify, func() {
		for _, s := range m.subscribers {
			s.Armed(next, actor)
		}
	})

	// Transitions straight from DISARMED (home arms and zero-delay away
	// arms) report here; an away arm that counted down through ARMING
	// was already reported when the countdown began.
	if prev == StateDisarmed {
		go m.monitor.Send(monType, "", actor, nil)
	}
	return notify
}

// trigger moves to TRIGGERED and starts the siren-duration countdown.
func (m *Machine) trigger(zoneID, zoneName string, alarmDuration int) []func() {
	prev := m.state
	m.cancelTimers()
	m.setState(StateTriggered)
	m.triggeredByID = zoneID
	m.triggeredByName = zoneName

	m.alarmGen++
	gen := m.alarmGen
	m.alarmTimer = m.clock.AfterFunc(time.Duration(alarmDuration)*time.Second, func() {
		m.alarmElapsed(gen)
	})

	m.events.Log(event.Event{
		Type:      event.TypeTriggered,
		StateFrom: string(prev),
		StateTo:   string(StateTriggered),
		ZoneID:    zoneID,
		Details:   map[string]any{"zone_name": zoneName},
	})

	notify := m.queueStateChanged(prev, StateTriggered, "")
	notify = append(notify, func() {
		for _, s := range m.subscribers {
			s.Triggered(zoneID, zoneName)
		}
	})

	go m.monitor.Send(monitoring.EventTriggered, zoneID, "", map[string]any{"zone_name": zoneName})
	return notify
}

// setState records a transition and logs it.
func (m *Machine) setState(next State) {
	prev := m.state
	m.state = next
	m.logger.Info("state transition",
		"from", string(prev),
		"to", string(next),
	)
}

// cancelTimers stops every pending countdown and invalidates their
// generations so in-flight callbacks become no-ops.
func (m *Machine) cancelTimers() {
	m.exitGen++
	m.entryGen++
	m.alarmGen++
	if m.exitTimer != nil {
		m.exitTimer.Stop()
	}
	if m.entryTimer != nil {
		m.entryTimer.Stop()
	}
	if m.alarmTimer != nil {
		m.alarmTimer.Stop()
	}
}

// queueStateChanged builds the StateChanged fan-out closure.
func (m *Machine) queueStateChanged(prev, next State, actor string) []func() {
	return []func(){func() {
		for _, s := range m.subscribers {
			s.StateChanged(prev, next, actor)
		}
	}}
}

// queueDuress builds the duress fan-out when the verification used a
// duress credential. The audit row and the silent monitoring signal go
// out here too, so every duress use produces exactly one of each.
func (m *Machine) queueDuress(v *auth.Verification) []func() {
	if !v.Duress {
		return nil
	}

	m.events.Log(event.Event{
		Type:   event.TypeDuress,
		Actor:  v.User.Name,
		UserID: v.User.ID,
		Duress: true,
	})
	go m.monitor.Send(monitoring.EventDuress, "", v.User.Name, nil)

	actor := v.User.Name
	at := m.clock.Now()
	return []func(){func() {
		for _, s := range m.subscribers {
			s.DuressUsed(actor, at)
		}
	}}
}

// --- unlocked helpers ---

// dispatch runs queued notifications outside the mutex.
func (m *Machine) dispatch(fns []func()) {
	for _, f := range fns {
		f()
	}
}

// authFailure maps an authentication error to the uniform command
// result. Infrastructure faults are reported as internal errors;
// refusals all read the same so a caller learns nothing about why.
func (m *Machine) authFailure(err error, operation, source string) Result {
	if !auth.IsAuthFailure(err) {
		m.logger.Error("authentication infrastructure fault",
			"operation", operation,
			"error", err,
		)
		return Result{Success: false, Message: msgInternalError, State: m.State()}
	}

	msg := msgInvalidCode
	if errors.Is(err, auth.ErrNotAdmin) {
		msg = msgAdminRequired
	}

	m.events.Log(event.Event{
		Type:    event.TypeAuthFailed,
		Details: map[string]any{"operation": operation, "source": source},
	})
	return Result{Success: false, Message: msg, State: m.State()}
}
