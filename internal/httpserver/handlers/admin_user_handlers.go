package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"admincore/internal/auth"
	"admincore/internal/models"
	"admincore/internal/service"
)

func ListUsers(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := svc.ListAccounts(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, users)
	}
}

func CreateUser(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string      `json:"email"`
			Name  string      `json:"name"`
			Role  models.Role `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		actor := auth.Subject(r.Context())
		user, tempPassword, err := svc.CreateAccount(r.Context(), actor, req.Email, req.Name, req.Role)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		// One-time disclosure: the plaintext exists only in this response.
		respondJSON(w, map[string]any{"user": user, "temp_password": tempPassword})
	}
}

func UpdateUser(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Name *string      `json:"name"`
			Role *models.Role `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		actor := auth.Subject(r.Context())
		user, err := svc.UpdateAccount(r.Context(), actor, id, req.Name, req.Role)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, user)
	}
}

func DeactivateUser(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := auth.Subject(r.Context())
		if err := svc.DeactivateAccount(r.Context(), actor, id); err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, map[string]any{"deactivated": true})
	}
}

func ActivateUser(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := auth.Subject(r.Context())
		if err := svc.ActivateAccount(r.Context(), actor, id); err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, map[string]any{"activated": true})
	}
}

func ResetPassword(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := auth.Subject(r.Context())
		tempPassword, err := svc.ResetPassword(r.Context(), actor, id)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, map[string]any{"temp_password": tempPassword})
	}
}
