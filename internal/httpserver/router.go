package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"admincore/internal/auth"
	"admincore/internal/httpserver/handlers"
	"admincore/internal/models"
	"admincore/internal/service"
)

func NewRouter(svc *service.AdminUserService, db *gorm.DB, lg *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Post("/v1/auth/login", handlers.Login(svc, db, lg))
	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db))
		protected.Get("/v1/me", handlers.Me(svc, lg))
		protected.Post("/v1/auth/logout", handlers.Logout(db))
		protected.Post("/v1/auth/password", handlers.ChangePassword(svc, lg))
		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole(models.RoleSuperAdmin))
			admin.Get("/v1/admin/users", handlers.ListUsers(svc, lg))
			admin.Post("/v1/admin/users", handlers.CreateUser(svc, lg))
			admin.Patch("/v1/admin/users/{id}", handlers.UpdateUser(svc, lg))
			admin.Post("/v1/admin/users/{id}/deactivate", handlers.DeactivateUser(svc, lg))
			admin.Post("/v1/admin/users/{id}/activate", handlers.ActivateUser(svc, lg))
			admin.Post("/v1/admin/users/{id}/reset-password", handlers.ResetPassword(svc, lg))
			admin.Get("/v1/admin/audit-logs", handlers.AuditLogs(svc, lg))
		})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
