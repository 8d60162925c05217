package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"admincore/internal/auth"
	"admincore/internal/models"
	"admincore/internal/service"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(svc *service.AdminUserService, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		user, err := svc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		jti := uuid.New().String()
		tok, err := auth.Sign(user.ID, user.Role, jti)
		if err != nil {
			http.Error(w, "token error", http.StatusInternalServerError)
			return
		}
		sess := models.Session{JTI: jti, UserID: user.ID, ExpiresAt: time.Now().Add(auth.TokenTTL()), CreatedAt: time.Now()}
		if err := db.Create(&sess).Error; err != nil {
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{
			"token":                tok,
			"must_change_password": user.MustChangePassword,
		})
	}
}

func Logout(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jti := auth.FromContext(r.Context()).JWTID
		now := time.Now()
		_ = db.Model(&models.Session{}).Where("jti = ?", jti).Update("revoked_at", &now).Error
		respondJSON(w, map[string]any{"ok": true})
	}
}

func Me(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.GetAccount(r.Context(), auth.Subject(r.Context()))
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, user)
	}
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func ChangePassword(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := svc.ChangePassword(r.Context(), auth.Subject(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, map[string]any{"changed": true})
	}
}
