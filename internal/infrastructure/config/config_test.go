package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a YAML config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  id: test-site
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./data/sentinel.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if !cfg.Database.WALMode {
		t.Error("Database.WALMode = false, want true by default")
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want 8090", cfg.API.Port)
	}
	if cfg.Auth.MaxFailedAttempts != 5 {
		t.Errorf("Auth.MaxFailedAttempts = %d, want 5", cfg.Auth.MaxFailedAttempts)
	}
	if cfg.Auth.LockoutDuration != 300 {
		t.Errorf("Auth.LockoutDuration = %d, want 300", cfg.Auth.LockoutDuration)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  id: home
database:
  path: /var/lib/sentinel/sentinel.db
api:
  port: 9000
auth:
  max_failed_attempts: 3
  lockout_duration: 600
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/sentinel/sentinel.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Auth.MaxFailedAttempts != 3 {
		t.Errorf("Auth.MaxFailedAttempts = %d, want 3", cfg.Auth.MaxFailedAttempts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
site:
  id: home
database:
  path: /from/file.db
`)

	t.Setenv("SENTINEL_DATABASE_PATH", "/from/env.db")
	t.Setenv("SENTINEL_MONITORING_API_KEY", "secret-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Monitoring.APIKey != "secret-key" {
		t.Errorf("Monitoring.APIKey = %q, want env override", cfg.Monitoring.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidateMonitoring(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "monitoring enabled without endpoint",
			mutate: func(c *Config) {
				c.Monitoring.Enabled = true
				c.Monitoring.Protocol = "contact_id"
				c.Monitoring.AccountID = "1234"
			},
			wantErr: "monitoring.endpoint",
		},
		{
			name: "monitoring enabled with bad protocol",
			mutate: func(c *Config) {
				c.Monitoring.Enabled = true
				c.Monitoring.Protocol = "telegraph"
				c.Monitoring.Endpoint = "receiver.example.com:9999"
				c.Monitoring.AccountID = "1234"
			},
			wantErr: "monitoring.protocol",
		},
		{
			name: "webhook with tcp endpoint",
			mutate: func(c *Config) {
				c.Monitoring.Enabled = true
				c.Monitoring.Protocol = "webhook"
				c.Monitoring.Endpoint = "receiver.example.com:9999"
				c.Monitoring.AccountID = "1234"
			},
			wantErr: "http(s) URL",
		},
		{
			name: "valid sia over tcp",
			mutate: func(c *Config) {
				c.Monitoring.Enabled = true
				c.Monitoring.Protocol = "sia"
				c.Monitoring.Endpoint = "receiver.example.com:9999"
				c.Monitoring.AccountID = "1234"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAuthBounds(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.MaxFailedAttempts = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for zero max_failed_attempts")
	}
}
