// Package config loads and validates Sentinel Core configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides (SENTINEL_* pattern). Infrastructure settings (database
// path, broker address, monitoring endpoint) live here; runtime alarm
// tunables (delays, notification routing) live in the alarm_config
// database row and are changed through the admin command surface.
package config
