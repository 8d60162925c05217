package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"admincore/internal/service"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondDomainError maps service sentinel errors to HTTP status codes.
func respondDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmailAlreadyExists),
		errors.Is(err, service.ErrAlreadyActive),
		errors.Is(err, service.ErrAlreadyInactive),
		errors.Is(err, service.ErrLastSuperAdminProtected),
		errors.Is(err, service.ErrCannotActOnSelf):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidEmailFormat),
		errors.Is(err, service.ErrDomainNotAllowed),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidRole):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrAccountDeactivated):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
