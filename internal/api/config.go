package api

import (
	"encoding/json"
	"net/http"
)

// handleGetConfig returns the alarm timing configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.machine.Settings(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// updateConfigRequest carries alarm timing changes. Absent fields keep
// their current values.
type updateConfigRequest struct {
	AdminPIN        string `json:"admin_pin"`
	EntryDelay      *int   `json:"entry_delay"`
	ExitDelay       *int   `json:"exit_delay"`
	AlarmDuration   *int   `json:"alarm_duration"`
	NotifyOnArm     *bool  `json:"notify_on_arm"`
	NotifyOnTrigger *bool  `json:"notify_on_trigger"`
	Source          string `json:"source"`
}

// handleUpdateConfig updates the alarm timing configuration. Admin only.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cfg, err := s.machine.Settings(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if req.EntryDelay != nil {
		cfg.EntryDelay = *req.EntryDelay
	}
	if req.ExitDelay != nil {
		cfg.ExitDelay = *req.ExitDelay
	}
	if req.AlarmDuration != nil {
		cfg.AlarmDuration = *req.AlarmDuration
	}
	if req.NotifyOnArm != nil {
		cfg.NotifyOnArm = *req.NotifyOnArm
	}
	if req.NotifyOnTrigger != nil {
		cfg.NotifyOnTrigger = *req.NotifyOnTrigger
	}

	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = commandSource
	}

	if err := s.machine.UpdateSettings(r.Context(), req.AdminPIN, cfg, source); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}
