package monitoring

import (
	"encoding/json"
	"fmt"
	"time"
)

// webhookPayload is the JSON body for webhook deliveries. Field order is
// part of the observed wire contract.
type webhookPayload struct {
	AccountID string         `json:"account_id"`
	EventType string         `json:"event_type"`
	Zone      string         `json:"zone"`
	User      string         `json:"user"`
	Timestamp string         `json:"timestamp"`
	TestMode  bool           `json:"test_mode"`
	Details   map[string]any `json:"details"`
}

// EncodeWebhook builds the webhook JSON body for an event.
func EncodeWebhook(account, eventType, zone, user string, testMode bool, details map[string]any, at time.Time) ([]byte, error) {
	if details == nil {
		details = map[string]any{}
	}

	body, err := json.Marshal(webhookPayload{
		AccountID: account,
		EventType: eventType,
		Zone:      zone,
		User:      user,
		Timestamp: at.Format(time.RFC3339),
		TestMode:  testMode,
		Details:   details,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding webhook payload: %w", err)
	}
	return body, nil
}
