package mqtt

import "fmt"

// Topic prefixes for the Sentinel MQTT scheme.
//
// Zone intake:   sentinel/zone/{zone_id}/state        (from sensor bridges)
// Alarm state:   sentinel/alarm/state                 (retained, from core)
// Alarm events:  sentinel/alarm/event                 (from core)
// Commands:      sentinel/command/{target}/{address}  (from core to bridges)
// System:        sentinel/system/status               (LWT + lifecycle)
const (
	// TopicPrefix is the base for all Sentinel topics.
	TopicPrefix = "sentinel"

	// TopicPrefixAlarm is the base for alarm state and events.
	TopicPrefixAlarm = "sentinel/alarm"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "sentinel/system"
)

// Topics provides builders for Sentinel MQTT topics. Using these
// helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// ZoneState returns the state topic for one zone.
//
// Example: sentinel/zone/front_door/state
func (Topics) ZoneState(zoneID string) string {
	return fmt.Sprintf("%s/zone/%s/state", TopicPrefix, zoneID)
}

// ZoneConfig returns the topic a sensor bridge announces zone metadata on.
//
// Example: sentinel/zone/front_door/config
func (Topics) ZoneConfig(zoneID string) string {
	return fmt.Sprintf("%s/zone/%s/config", TopicPrefix, zoneID)
}

// AlarmState returns the authoritative alarm state topic. Published
// retained so panels see the current state on subscribe.
//
// Example: sentinel/alarm/state
func (Topics) AlarmState() string {
	return TopicPrefixAlarm + "/state"
}

// AlarmEvent returns the alarm event stream topic.
//
// Example: sentinel/alarm/event
func (Topics) AlarmEvent() string {
	return TopicPrefixAlarm + "/event"
}

// Command returns the topic for commands to an actuator bridge.
//
// Example: sentinel/command/lock/all
func (Topics) Command(target, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, target, address)
}

// SystemStatus returns the system status topic.
//
// Example: sentinel/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllZoneStates returns a pattern matching every zone state update.
//
// Pattern: sentinel/zone/+/state
func (Topics) AllZoneStates() string {
	return TopicPrefix + "/zone/+/state"
}

// AllZoneConfigs returns a pattern matching every zone announcement.
//
// Pattern: sentinel/zone/+/config
func (Topics) AllZoneConfigs() string {
	return TopicPrefix + "/zone/+/config"
}

// AllTopics returns a pattern matching all Sentinel topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: sentinel/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
