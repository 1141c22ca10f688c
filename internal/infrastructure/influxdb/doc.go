// Package influxdb provides InfluxDB connectivity for the Sentinel core.
//
// It wraps the official influxdb-client-go v2 library with Sentinel-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series telemetry for:
//   - Alarm state transitions (time-in-state, trigger frequency)
//   - Authentication attempts (success/failure rates by source)
//   - Monitoring relay delivery latency and drop rates
//   - Zone trip frequency
//
// The event log in SQLite remains the audit record; InfluxDB is for
// trend analysis and dashboards, and the core runs fully without it.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteStateTransition("disarmed", "arming", "Alice")
package influxdb
