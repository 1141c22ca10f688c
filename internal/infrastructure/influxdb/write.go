package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStateTransition records an alarm state change.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Time-in-state and trigger frequency fall out of this series.
func (c *Client) WriteStateTransition(from, to, actor string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"alarm_state",
		map[string]string{
			"from": from,
			"to":   to,
		},
		map[string]interface{}{
			"actor": actor,
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteZoneTrip records a zone sensor trip that reached the state
// machine while armed, whether or not it raised the alarm.
func (c *Client) WriteZoneTrip(zoneID, zoneType string, triggered bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"zone_trips",
		map[string]string{
			"zone_id":   zoneID,
			"zone_type": zoneType,
		},
		map[string]interface{}{
			"triggered": triggered,
			"count":     1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAuthAttempt records an authentication outcome by source. The
// attempted code is never part of the point.
func (c *Client) WriteAuthAttempt(source string, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"auth_attempts",
		map[string]string{
			"source": source,
		},
		map[string]interface{}{
			"success": success,
			"count":   1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteMonitoringDelivery records a monitoring relay delivery outcome
// and its latency.
func (c *Client) WriteMonitoringDelivery(protocol, eventType string, delivered bool, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"monitoring_delivery",
		map[string]string{
			"protocol":   protocol,
			"event_type": eventType,
		},
		map[string]interface{}{
			"delivered":  delivered,
			"latency_ms": latency.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
