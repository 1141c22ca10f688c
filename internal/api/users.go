package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentinelsec/sentinel-core/internal/alarm"
)

// handleListUsers returns all credential records. PIN hashes carry
// `json:"-"` tags and never serialise.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.machine.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// addUserRequest is the body of a user creation command.
type addUserRequest struct {
	AdminPIN string `json:"admin_pin"`
	Name     string `json:"name"`
	PIN      string `json:"pin"`
	LockPIN  string `json:"lock_pin"`
	IsAdmin  bool   `json:"is_admin"`
	IsDuress bool   `json:"is_duress"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Source   string `json:"source"`
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	source := req.Source
	if source == "" {
		source = commandSource
	}

	u, err := s.machine.AddUser(r.Context(), alarm.AddUserParams{
		AdminPIN: req.AdminPIN,
		Name:     req.Name,
		PIN:      req.PIN,
		LockPIN:  req.LockPIN,
		IsAdmin:  req.IsAdmin,
		IsDuress: req.IsDuress,
		Phone:    req.Phone,
		Email:    req.Email,
	}, source)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

// updateUserRequest carries the mutable fields of a credential record.
// Absent fields are left unchanged.
type updateUserRequest struct {
	AdminPIN string  `json:"admin_pin"`
	Name     *string `json:"name"`
	PIN      *string `json:"pin"`
	LockPIN  *string `json:"lock_pin"`
	IsAdmin  *bool   `json:"is_admin"`
	IsDuress *bool   `json:"is_duress"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	Source   string  `json:"source"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	source := req.Source
	if source == "" {
		source = commandSource
	}

	u, err := s.machine.UpdateUser(r.Context(), alarm.UpdateUserParams{
		AdminPIN: req.AdminPIN,
		UserID:   userID,
		Name:     req.Name,
		PIN:      req.PIN,
		LockPIN:  req.LockPIN,
		IsAdmin:  req.IsAdmin,
		IsDuress: req.IsDuress,
		Phone:    req.Phone,
		Email:    req.Email,
	}, source)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// adminRequest is the body of admin commands that need only a PIN.
type adminRequest struct {
	AdminPIN string `json:"admin_pin"`
	Source   string `json:"source"`
}

func (a *adminRequest) source() string {
	if a.Source != "" {
		return a.Source
	}
	return commandSource
}

// handleRemoveUser disables a credential record. The row survives so the
// audit log keeps resolving its references.
func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.machine.RemoveUser(r.Context(), req.AdminPIN, userID, req.source()); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"removed": userID})
}

func (s *Server) handleGrantLockAccess(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	lockID := chi.URLParam(r, "lockID")

	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.machine.GrantLockAccess(r.Context(), req.AdminPIN, userID, lockID, req.source()); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"lock_id": lockID,
		"granted": true,
	})
}

func (s *Server) handleRevokeLockAccess(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	lockID := chi.URLParam(r, "lockID")

	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.machine.RevokeLockAccess(r.Context(), req.AdminPIN, userID, lockID, req.source()); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"lock_id": lockID,
		"granted": false,
	})
}
