package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Sentinel Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// Runtime alarm tunables (entry/exit delay, alarm duration, notification
// routing) are NOT here: they live in the alarm_config database row and are
// mutated only through the admin-authenticated update_config command.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Auth       AuthConfig       `yaml:"auth"`
}

// SiteConfig identifies the premises this controller instance protects.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// MQTT carries sensor zone-state intake and alarm event fan-out; the core
// runs fully without a broker when disabled.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings for optional
// state-transition and authentication telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MonitoringConfig contains professional-monitoring relay settings.
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled"`

	// Protocol selects the wire format: "contact_id", "sia", or "webhook".
	Protocol string `yaml:"protocol"`

	// Endpoint is either an http(s) URL (HTTP POST delivery) or a
	// "host:port" pair (raw TCP delivery). Webhook requires an http(s) URL.
	Endpoint string `yaml:"endpoint"`

	// AccountID is the receiver-assigned account number (4 digits on the wire).
	AccountID string `yaml:"account_id"`

	// APIKey, when set, is sent as a bearer token on HTTP deliveries.
	APIKey string `yaml:"api_key"`

	// TestMode flags webhook payloads so receivers can discard drills.
	TestMode bool `yaml:"test_mode"`

	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// HeartbeatConfig contains periodic supervision-signal settings.
type HeartbeatConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"` // seconds
}

// AuthConfig contains authentication lockout settings.
type AuthConfig struct {
	// MaxFailedAttempts is the number of failed PIN attempts inside the
	// lockout window that blocks all further authentication.
	MaxFailedAttempts int `yaml:"max_failed_attempts"`

	// LockoutDuration is the rolling window length in seconds.
	LockoutDuration int `yaml:"lockout_duration"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SENTINEL_SECTION_KEY
// For example: SENTINEL_DATABASE_PATH, SENTINEL_MONITORING_API_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default lockout thresholds. Five failures inside a five-minute window
// blocks all further authentication until the window rolls past.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 300
)

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Sentinel",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/sentinel.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sentinel-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Monitoring: MonitoringConfig{
			Protocol: "webhook",
			Heartbeat: HeartbeatConfig{
				Interval: 3600,
			},
		},
		Auth: AuthConfig{
			MaxFailedAttempts: DefaultMaxFailedAttempts,
			LockoutDuration:   DefaultLockoutDuration,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SENTINEL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SENTINEL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SENTINEL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SENTINEL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SENTINEL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SENTINEL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SENTINEL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SENTINEL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Monitoring - API key should never live in the config file in production
	if v := os.Getenv("SENTINEL_MONITORING_API_KEY"); v != "" {
		cfg.Monitoring.APIKey = v
	}
	if v := os.Getenv("SENTINEL_MONITORING_ENDPOINT"); v != "" {
		cfg.Monitoring.Endpoint = v
	}
}

// validMonitoringProtocols is the set of supported relay wire formats.
var validMonitoringProtocols = map[string]bool{
	"contact_id": true,
	"sia":        true,
	"webhook":    true,
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Monitoring.Enabled {
		if !validMonitoringProtocols[c.Monitoring.Protocol] {
			errs = append(errs, "monitoring.protocol must be contact_id, sia, or webhook")
		}
		if c.Monitoring.Endpoint == "" {
			errs = append(errs, "monitoring.endpoint is required when monitoring is enabled")
		}
		if c.Monitoring.AccountID == "" {
			errs = append(errs, "monitoring.account_id is required when monitoring is enabled")
		}
		if c.Monitoring.Protocol == "webhook" && !strings.HasPrefix(c.Monitoring.Endpoint, "http") {
			errs = append(errs, "monitoring.endpoint must be an http(s) URL for the webhook protocol")
		}
	}

	if c.Auth.MaxFailedAttempts < 1 {
		errs = append(errs, "auth.max_failed_attempts must be at least 1")
	}
	if c.Auth.LockoutDuration < 1 {
		errs = append(errs, "auth.lockout_duration must be at least 1 second")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetLockoutWindow returns the authentication lockout window as a Duration.
func (c *Config) GetLockoutWindow() time.Duration {
	return time.Duration(c.Auth.LockoutDuration) * time.Second
}

// GetHeartbeatInterval returns the monitoring heartbeat interval as a Duration.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.Monitoring.Heartbeat.Interval) * time.Second
}
