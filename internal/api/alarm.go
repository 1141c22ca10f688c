package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// commandSource tags events and the attempt ledger with where a command
// came from when the caller doesn't say.
const commandSource = "api"

// commandRequest is the body of an alarm command. "pin" and "code" are
// interchangeable; keypads send whichever label they prefer.
type commandRequest struct {
	PIN    string `json:"pin"`
	Code   string `json:"code"`
	Source string `json:"source"`
}

func (c *commandRequest) credential() string {
	if c.PIN != "" {
		return c.PIN
	}
	return c.Code
}

func (c *commandRequest) source() string {
	if c.Source != "" {
		return c.Source
	}
	return commandSource
}

// decodeCommand parses a command body. An empty body is not an error;
// some commands need no credential.
func decodeCommand(w http.ResponseWriter, r *http.Request) (*commandRequest, bool) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return nil, false
	}
	return &req, true
}

// recordAuth feeds the telemetry series when a recorder is wired.
func (s *Server) recordAuth(source string, success bool) {
	if s.telemetry != nil {
		s.telemetry.AuthAttempt(source, success)
	}
}

// handleAlarmStatus returns the current alarm state snapshot.
func (s *Server) handleAlarmStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.machine.Status())
}

// Command outcomes are data, not errors: a refused arm or a wrong PIN
// still answers 200 with success=false, so keypads branch on one field
// and an attacker reads nothing from the status code.

func (s *Server) handleArmAway(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	res := s.machine.ArmAway(r.Context(), req.credential(), req.source())
	s.recordAuth(req.source(), res.Success)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleArmHome(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	res := s.machine.ArmHome(r.Context(), req.credential(), req.source())
	s.recordAuth(req.source(), res.Success)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	res := s.machine.Disarm(r.Context(), req.credential(), req.source())
	s.recordAuth(req.source(), res.Success)
	writeJSON(w, http.StatusOK, res)
}

// handleTrigger raises the alarm without a credential. Panic buttons
// must work for anyone.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	res := s.machine.ManualTrigger(r.Context(), req.source())
	writeJSON(w, http.StatusOK, res)
}

// handleMonitoringTest sends a test event to the monitoring receiver so
// an installer can confirm the path end to end.
func (s *Server) handleMonitoringTest(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil || !s.monitor.Enabled() {
		writeBadRequest(w, "monitoring is not enabled")
		return
	}

	delivered := s.monitor.TestConnection()
	writeJSON(w, http.StatusOK, map[string]any{"delivered": delivered})
}
