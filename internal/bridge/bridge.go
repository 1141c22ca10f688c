// Package bridge connects the alarm state machine to the MQTT bus.
//
// Inbound, it turns sensor messages into zone registrations and trip
// evaluations. Outbound, it is an alarm.Subscriber that publishes the
// authoritative alarm state (retained), the event stream, and actuator
// commands (lock on arm, siren on trigger).
//
// Duress notifications are deliberately NOT republished: anything on
// the bus can end up on a wall panel.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sentinelsec/sentinel-core/internal/alarm"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/mqtt"
	"github.com/sentinelsec/sentinel-core/internal/zone"
)

// defaultQoS for alarm state and command publishes. At-least-once: a
// duplicated "locked" command is harmless, a lost one is not.
const defaultQoS = 1

// Bridge wires zone intake and alarm fan-out onto an MQTT client.
type Bridge struct {
	client  *mqtt.Client
	machine *alarm.Machine
	zones   *zone.Registry
	logger  *logging.Logger
	topics  mqtt.Topics
}

// New creates a Bridge. Call Start to subscribe, and register the
// bridge on the machine with machine.Subscribe(b).
func New(client *mqtt.Client, machine *alarm.Machine, zones *zone.Registry, logger *logging.Logger) *Bridge {
	return &Bridge{
		client:  client,
		machine: machine,
		zones:   zones,
		logger:  logger.With("component", "bridge"),
	}
}

// Start subscribes to the sensor topics and publishes the current
// alarm state so late-joining panels see it immediately.
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.AllZoneStates(), defaultQoS, b.handleZoneState); err != nil {
		return fmt.Errorf("subscribing to zone states: %w", err)
	}
	if err := b.client.Subscribe(b.topics.AllZoneConfigs(), defaultQoS, b.handleZoneConfig); err != nil {
		return fmt.Errorf("subscribing to zone configs: %w", err)
	}

	b.publishState("", b.machine.State(), "")
	return nil
}

// zoneStatePayload is what sensor bridges publish on
// sentinel/zone/{id}/state.
type zoneStatePayload struct {
	State string `json:"state"` // "open" or "closed"
}

// zoneConfigPayload is a sensor bridge's zone announcement on
// sentinel/zone/{id}/config.
type zoneConfigPayload struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ActiveHome bool   `json:"active_home"`
	ActiveAway bool   `json:"active_away"`
}

func (b *Bridge) handleZoneState(topic string, payload []byte) error {
	zoneID, ok := zoneIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected zone topic: %s", topic)
	}

	var msg zoneStatePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding zone state for %s: %w", zoneID, err)
	}

	// Only the open edge matters; "closed" is a restoral, not a trip.
	if msg.State != "open" {
		return nil
	}

	b.machine.ZoneTriggered(context.Background(), zoneID)
	return nil
}

func (b *Bridge) handleZoneConfig(topic string, payload []byte) error {
	zoneID, ok := zoneIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected zone topic: %s", topic)
	}

	var msg zoneConfigPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding zone config for %s: %w", zoneID, err)
	}

	z := &zone.Zone{
		ID:         zoneID,
		Name:       msg.Name,
		Type:       zone.Type(msg.Type),
		ActiveHome: msg.ActiveHome,
		ActiveAway: msg.ActiveAway,
	}
	if z.Name == "" {
		z.Name = zoneID
	}
	if err := b.zones.Register(context.Background(), z); err != nil {
		return fmt.Errorf("registering zone %s: %w", zoneID, err)
	}

	b.logger.Info("zone registered from bus", "zone_id", zoneID, "type", msg.Type)
	return nil
}

// zoneIDFromTopic extracts the zone ID from sentinel/zone/{id}/state
// or sentinel/zone/{id}/config.
func zoneIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != mqtt.TopicPrefix || parts[1] != "zone" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

// --- alarm.Subscriber ---

// StateChanged publishes the retained alarm state and an event, and
// runs the arming actions on the edge that starts an away arm.
func (b *Bridge) StateChanged(prev, next alarm.State, actor string) {
	b.publishState(prev, next, actor)
	b.publishEvent("state_changed", map[string]any{
		"from":  string(prev),
		"to":    string(next),
		"actor": actor,
	})

	if armingEdge(prev, next) {
		b.publishCommand("lock", "all", map[string]any{"action": "lock"})
	}
}

// armingEdge reports whether a transition starts an away arm. That is
// when the premises should lock up: at the beginning of the exit
// delay, while the occupants are still there to notice a door that
// refused — not after they have left. A zero-delay arm never passes
// through ARMING, so the direct DISARMED->ARMED_AWAY edge counts too.
func armingEdge(prev, next alarm.State) bool {
	return prev == alarm.StateDisarmed &&
		(next == alarm.StateArming || next == alarm.StateArmedAway)
}

// Armed publishes nothing extra: the lock command already went out on
// the arming edge, and home arms leave the doors alone.
func (b *Bridge) Armed(mode alarm.State, actor string) {}

// Disarmed silences the siren.
func (b *Bridge) Disarmed(actor string) {
	b.publishCommand("siren", "all", map[string]any{"action": "off"})
}

// Triggered sounds the siren and emits a triggered event.
func (b *Bridge) Triggered(zoneID, zoneName string) {
	b.publishCommand("siren", "all", map[string]any{"action": "on"})
	b.publishEvent("triggered", map[string]any{
		"zone_id":   zoneID,
		"zone_name": zoneName,
	})
}

// DuressUsed publishes nothing. The bus is not a silent channel.
func (b *Bridge) DuressUsed(actor string, at time.Time) {}

func (b *Bridge) publishState(prev, next alarm.State, actor string) {
	payload, err := json.Marshal(map[string]any{
		"state":     string(next),
		"previous":  string(prev),
		"actor":     actor,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := b.client.PublishRetained(b.topics.AlarmState(), payload); err != nil {
		b.logger.Error("failed to publish alarm state", "error", err)
	}
}

func (b *Bridge) publishEvent(eventType string, fields map[string]any) {
	fields["type"] = eventType
	fields["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := b.client.Publish(b.topics.AlarmEvent(), payload, defaultQoS, false); err != nil {
		b.logger.Error("failed to publish alarm event", "type", eventType, "error", err)
	}
}

func (b *Bridge) publishCommand(target, address string, fields map[string]any) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := b.client.Publish(b.topics.Command(target, address), payload, defaultQoS, false); err != nil {
		b.logger.Error("failed to publish command", "target", target, "error", err)
	}
}
