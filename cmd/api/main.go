package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"admincore/internal/auth"
	"admincore/internal/config"
	"admincore/internal/httpserver"
	"admincore/internal/logger"
	"admincore/internal/service"
	"admincore/internal/store"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()
	cfg := config.FromEnv()
	if cfg.DatabaseURL == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	if len(cfg.AllowedEmailDomains) == 0 {
		lg.Fatalw("ALLOWED_EMAIL_DOMAINS is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	st := store.NewGorm(db)
	if err := st.Migrate(); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	var issuer auth.TempPasswordIssuer = auth.RandomIssuer{}
	if cfg.TempPasswordMode == config.TempPasswordModeFixed {
		// Simulation mode: every issuance returns one shared constant.
		issuer = auth.FixedIssuer{Password: cfg.TempPasswordFixed}
		lg.Warnw("fixed temp password mode enabled; do not use in production")
	}

	svc := service.NewAdminUserService(service.Params{
		Accounts:            st.Accounts(),
		Audit:               st.Audit(),
		Tx:                  st,
		Issuer:              issuer,
		AllowedEmailDomains: cfg.AllowedEmailDomains,
		PasswordMinLength:   cfg.PasswordMinLength,
		Logger:              lg,
	})

	tempPassword, err := svc.Bootstrap(context.Background(), cfg.BootstrapAdminEmail, cfg.BootstrapAdminName)
	if err != nil {
		lg.Fatalw("bootstrap failed", "error", err)
	}
	if tempPassword != "" {
		// Disclosed once at boot; it is not recoverable later.
		lg.Infow("seeded bootstrap super_admin", "email", cfg.BootstrapAdminEmail, "temp_password", tempPassword)
	}

	router := httpserver.NewRouter(svc, db, lg)
	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}
