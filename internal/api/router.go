package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/alarm", func(r chi.Router) {
			r.Get("/", s.handleAlarmStatus)
			r.Post("/arm-away", s.handleArmAway)
			r.Post("/arm-home", s.handleArmHome)
			r.Post("/disarm", s.handleDisarm)
			r.Post("/trigger", s.handleTrigger)
		})

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", s.handleListZones)
			r.Post("/{id}/bypass", s.handleBypassZone)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleAddUser)
			r.Patch("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleRemoveUser)
			r.Put("/{id}/locks/{lockID}", s.handleGrantLockAccess)
			r.Delete("/{id}/locks/{lockID}", s.handleRevokeLockAccess)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Patch("/", s.handleUpdateConfig)
		})

		r.Get("/events", s.handleListEvents)

		r.Post("/monitoring/test", s.handleMonitoringTest)
	})

	return r
}

// handleHealth returns the health status of the core and its
// infrastructure connections.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "unhealthy"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if s.mqtt == nil {
		checks["mqtt"] = "disabled"
	} else if s.mqtt.IsConnected() {
		checks["mqtt"] = "connected"
	} else {
		// Degraded, not fatal: the core keeps running without a broker.
		checks["mqtt"] = "disconnected"
	}

	if s.influx == nil {
		checks["influxdb"] = "disabled"
	} else if err := s.influx.HealthCheck(r.Context()); err != nil {
		// Degraded, not fatal: metrics are best-effort.
		checks["influxdb"] = "unreachable"
	} else {
		checks["influxdb"] = "ok"
	}

	if s.monitor != nil && s.monitor.Enabled() {
		checks["monitoring"] = "enabled"
	} else {
		checks["monitoring"] = "disabled"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"state":   s.machine.State(),
		"checks":  checks,
	})
}
