package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleListZones returns all registered zones.
func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.zones.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list zones", "error", err)
		writeInternalError(w, "failed to list zones")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"zones": zones,
		"count": len(zones),
	})
}

// bypassRequest is the body of a zone bypass command.
type bypassRequest struct {
	AdminPIN string `json:"admin_pin"`
	Bypassed bool   `json:"bypassed"`

	// DurationSeconds bounds the bypass; zero holds it until disarm.
	DurationSeconds int `json:"duration_seconds"`

	Source string `json:"source"`
}

// handleBypassZone bypasses or reinstates a zone. Admin only.
func (s *Server) handleBypassZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "id")

	var req bypassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DurationSeconds < 0 {
		writeBadRequest(w, "duration_seconds must not be negative")
		return
	}

	source := req.Source
	if source == "" {
		source = commandSource
	}

	d := time.Duration(req.DurationSeconds) * time.Second
	if err := s.machine.BypassZone(r.Context(), req.AdminPIN, zoneID, req.Bypassed, d, source); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"zone_id":  zoneID,
		"bypassed": req.Bypassed,
	})
}
