// Package api provides the HTTP REST API for the Sentinel core.
//
// It exposes the alarm commands (arm, disarm, trigger), zone and user
// administration, the event log, and system health to keypads, panels
// and admin tools.
//
// There are no sessions or tokens: every command carries the caller's
// PIN and is authenticated independently. A stolen request replays one
// command, not a credential.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sentinelsec/sentinel-core/internal/alarm"
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

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Machine   *alarm.Machine
	Zones     *zone.Registry
	Events    event.Repository
	Monitor   *monitoring.Service
	DB        *database.DB
	MQTT      *mqtt.Client        // optional; nil when the broker is disabled
	Influx    *influxdb.Client    // optional; nil when metrics are disabled
	Telemetry *telemetry.Recorder // optional; nil disables telemetry
	Version   string
}

// Server is the HTTP API server for the Sentinel core.
//
// It manages the HTTP listener, routes and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	machine   *alarm.Machine
	zones     *zone.Registry
	events    event.Repository
	monitor   *monitoring.Service
	db        *database.DB
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	telemetry *telemetry.Recorder
	version   string

	server *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Machine == nil {
		return nil, fmt.Errorf("alarm machine is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event repository is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger.With("component", "api"),
		machine:   deps.Machine,
		zones:     deps.Zones,
		events:    deps.Events,
		monitor:   deps.Monitor,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		telemetry: deps.Telemetry,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
