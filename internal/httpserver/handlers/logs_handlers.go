package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"admincore/internal/service"
)

// AuditLogs returns the audit trail in timestamp order, oldest first.
// ?limit=N caps the result; the default is 200.
func AuditLogs(svc *service.AdminUserService, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 200
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}
		logs, err := svc.ListAuditLog(r.Context(), limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, logs)
	}
}
