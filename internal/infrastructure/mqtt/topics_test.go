package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"zone state", topics.ZoneState("front_door"), "sentinel/zone/front_door/state"},
		{"zone config", topics.ZoneConfig("front_door"), "sentinel/zone/front_door/config"},
		{"alarm state", topics.AlarmState(), "sentinel/alarm/state"},
		{"alarm event", topics.AlarmEvent(), "sentinel/alarm/event"},
		{"command", topics.Command("lock", "all"), "sentinel/command/lock/all"},
		{"system status", topics.SystemStatus(), "sentinel/system/status"},
		{"all zone states", topics.AllZoneStates(), "sentinel/zone/+/state"},
		{"all zone configs", topics.AllZoneConfigs(), "sentinel/zone/+/config"},
		{"all topics", topics.AllTopics(), "sentinel/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
