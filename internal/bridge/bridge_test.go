package bridge

import (
	"encoding/json"
	"testing"

	"github.com/sentinelsec/sentinel-core/internal/alarm"
)

func TestZoneIDFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"sentinel/zone/front_door/state", "front_door", true},
		{"sentinel/zone/front_door/config", "front_door", true},
		{"sentinel/zone/hallway_motion/state", "hallway_motion", true},
		{"sentinel/alarm/state", "", false},
		{"sentinel/zone//state", "", false},
		{"other/zone/front_door/state", "", false},
		{"sentinel/zone/front_door/state/extra", "", false},
	}

	for _, tt := range tests {
		id, ok := zoneIDFromTopic(tt.topic)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("zoneIDFromTopic(%q) = %q, %v; want %q, %v",
				tt.topic, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestArmingEdge(t *testing.T) {
	tests := []struct {
		prev, next alarm.State
		want       bool
	}{
		// Locks go out when the premises start closing up for an away
		// arm, including the zero-delay arm that skips ARMING.
		{alarm.StateDisarmed, alarm.StateArming, true},
		{alarm.StateDisarmed, alarm.StateArmedAway, true},
		{alarm.StateDisarmed, alarm.StateArmedHome, false},
		{alarm.StateArming, alarm.StateArmedAway, false},
		{alarm.StateArming, alarm.StateDisarmed, false},
		{alarm.StateArmedAway, alarm.StateDisarmed, false},
		{alarm.StatePending, alarm.StateTriggered, false},
	}

	for _, tt := range tests {
		if got := armingEdge(tt.prev, tt.next); got != tt.want {
			t.Errorf("armingEdge(%s, %s) = %v, want %v", tt.prev, tt.next, got, tt.want)
		}
	}
}

func TestZoneStatePayloadDecoding(t *testing.T) {
	var msg zoneStatePayload
	if err := json.Unmarshal([]byte(`{"state":"open"}`), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.State != "open" {
		t.Errorf("State = %q, want open", msg.State)
	}
}

func TestZoneConfigPayloadDecoding(t *testing.T) {
	raw := `{"name":"Front Door","type":"entry","active_home":true,"active_away":true}`

	var msg zoneConfigPayload
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Name != "Front Door" || msg.Type != "entry" {
		t.Errorf("decoded = %+v", msg)
	}
	if !msg.ActiveHome || !msg.ActiveAway {
		t.Errorf("activity flags = home:%v away:%v", msg.ActiveHome, msg.ActiveAway)
	}
}
