// Package telemetry feeds alarm activity into InfluxDB.
//
// The SQLite event log is the audit record; these series exist for
// dashboards and trend analysis. Everything here is best-effort and
// non-blocking, and a nil client turns the recorder into a no-op so
// callers never need to branch on whether InfluxDB is configured.
package telemetry

import (
	"time"

	"github.com/sentinelsec/sentinel-core/internal/alarm"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/influxdb"
)

// Recorder is an alarm.Subscriber that writes state transitions and
// trigger points, plus hooks for auth and monitoring-delivery series.
type Recorder struct {
	influx *influxdb.Client
}

// NewRecorder creates a Recorder. A nil client is allowed and yields a
// recorder that silently drops everything.
func NewRecorder(influx *influxdb.Client) *Recorder {
	return &Recorder{influx: influx}
}

// StateChanged records a state transition point.
func (r *Recorder) StateChanged(prev, next alarm.State, actor string) {
	if r.influx == nil {
		return
	}
	r.influx.WriteStateTransition(string(prev), string(next), actor)
}

// Armed is covered by StateChanged; nothing extra to record.
func (r *Recorder) Armed(mode alarm.State, actor string) {}

// Disarmed is covered by StateChanged; nothing extra to record.
func (r *Recorder) Disarmed(actor string) {}

// Triggered records the zone that raised the alarm.
func (r *Recorder) Triggered(zoneID, zoneName string) {
	if r.influx == nil {
		return
	}
	r.influx.WriteZoneTrip(zoneID, "", true)
}

// DuressUsed records nothing. Duress must leave no trace outside the
// audit log and the monitoring relay.
func (r *Recorder) DuressUsed(actor string, at time.Time) {}

// AuthAttempt records an authentication outcome by source.
func (r *Recorder) AuthAttempt(source string, success bool) {
	if r.influx == nil {
		return
	}
	r.influx.WriteAuthAttempt(source, success)
}

// MonitoringDelivery is the monitoring.Service delivery recorder hook.
func (r *Recorder) MonitoringDelivery(protocol, eventType string, delivered bool, latency time.Duration) {
	if r.influx == nil {
		return
	}
	r.influx.WriteMonitoringDelivery(protocol, eventType, delivered, latency)
}
