// Sentinel Core - Premises Security Controller
//
// This is the main entry point for the Sentinel Core application.
// Sentinel runs the alarm state machine, PIN authentication, the zone
// registry, the audit log, the MQTT sensor bridge and the HTTP API for
// a single protected premises. It is designed to keep working with no
// broker, no time-series store and no internet: only the database is
// load-bearing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/sentinelsec/sentinel-core/migrations"

	"github.com/sentinelsec/sentinel-core/internal/alarm"
	"github.com/sentinelsec/sentinel-core/internal/api"
	"github.com/sentinelsec/sentinel-core/internal/auth"
	"github.com/sentinelsec/sentinel-core/internal/bridge"
	"github.com/sentinelsec/sentinel-core/internal/event"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/config"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/database"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/influxdb"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/mqtt"
	"github.com/sentinelsec/sentinel-core/internal/monitoring"
	"github.com/sentinelsec/sentinel-core/internal/telemetry"
	"github.com/sentinelsec/sentinel-core/internal/zone"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error lets main handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Sentinel Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and apply migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Repositories and domain services
	users := auth.NewUserRepository(db.DB)
	attempts := auth.NewAttemptRepository(db.DB)
	locks := auth.NewLockAccessRepository(db.DB)
	guard := auth.NewGuard(users, attempts, locks,
		cfg.Auth.MaxFailedAttempts, cfg.GetLockoutWindow(), log)

	zones := zone.NewRegistry(zone.NewRepository(db.DB), log)
	if loadErr := zones.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading zone registry: %w", loadErr)
	}

	eventRepo := event.NewRepository(db.DB)
	appender := event.NewAppender(eventRepo, log)
	defer appender.Close()

	monitor := monitoring.NewService(cfg.Monitoring, log)
	defer monitor.Close()

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	recorder := telemetry.NewRecorder(influxClient)
	monitor.SetDeliveryRecorder(recorder.MonitoringDelivery)

	// Alarm state machine
	machine := alarm.NewMachine(alarm.Deps{
		Guard:    guard,
		Users:    users,
		Locks:    locks,
		Zones:    zones,
		Events:   appender,
		Settings: alarm.NewSettingsRepository(db.DB),
		Monitor:  monitor,
		Logger:   log,
		Clock:    alarm.NewClock(),
	})
	machine.Subscribe(recorder)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		sensorBridge := bridge.New(mqttClient, machine, zones, log)
		if startErr := sensorBridge.Start(); startErr != nil {
			return fmt.Errorf("starting sensor bridge: %w", startErr)
		}
		machine.Subscribe(sensorBridge)
	} else {
		log.Info("MQTT disabled, running without sensor bridge")
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		Machine:   machine,
		Zones:     zones,
		Events:    eventRepo,
		Monitor:   monitor,
		DB:        db,
		MQTT:      mqttClient,
		Influx:    influxClient,
		Telemetry: recorder,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}

	monitor.StartHeartbeat()

	log.Info("initialisation complete, waiting for shutdown signal",
		"site", cfg.Site.Name,
		"state", machine.State(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, sensor bridge transport, InfluxDB, monitoring
	// heartbeat, event appender, database.

	log.Info("Sentinel Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the SENTINEL_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("SENTINEL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
