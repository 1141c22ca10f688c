package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sentinelsec/sentinel-core/internal/alarm"
	"github.com/sentinelsec/sentinel-core/internal/auth"
	"github.com/sentinelsec/sentinel-core/internal/zone"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a domain error from an admin operation to an
// HTTP response. Authentication refusals keep their uniform wording.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidPIN):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid code")
	case errors.Is(err, auth.ErrNotAdmin):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "admin authentication required")
	case errors.Is(err, auth.ErrNoLockAccess):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "no access to this lock")
	case errors.Is(err, auth.ErrBadPINFormat):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "PIN must be 6-8 digits")
	case errors.Is(err, auth.ErrNameExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "user name already exists")
	case errors.Is(err, auth.ErrUserNotFound):
		writeNotFound(w, "user not found")
	case errors.Is(err, zone.ErrZoneNotFound):
		writeNotFound(w, "zone not found")
	case errors.Is(err, zone.ErrInvalidType):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid zone type")
	case errors.Is(err, alarm.ErrSettingsNotFound):
		writeInternalError(w, "alarm configuration missing")
	default:
		s.logger.Error("unhandled domain error", "error", err)
		writeInternalError(w, "internal error")
	}
}
