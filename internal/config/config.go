package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// TempPasswordMode selects how temporary credentials are issued.
// "random" generates a fresh policy-compliant value per issuance;
// "fixed" hands out one shared constant and exists for simulation only.
const (
	TempPasswordModeRandom = "random"
	TempPasswordModeFixed  = "fixed"
)

type Config struct {
	DatabaseURL string
	HTTPPort    string

	JWTSecret    string
	JWTExpiresIn time.Duration

	AllowedEmailDomains []string
	PasswordMinLength   int

	TempPasswordMode  string
	TempPasswordFixed string

	BootstrapAdminEmail string
	BootstrapAdminName  string
}

// FromEnv reads configuration from the environment. Callers are expected
// to have loaded .env via godotenv first.
func FromEnv() Config {
	c := Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		HTTPPort:            getenv("HTTP_PORT", "8080"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTExpiresIn:        24 * time.Hour,
		PasswordMinLength:   8,
		TempPasswordMode:    getenv("TEMP_PASSWORD_MODE", TempPasswordModeRandom),
		TempPasswordFixed:   os.Getenv("TEMP_PASSWORD_FIXED"),
		BootstrapAdminEmail: os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminName:  getenv("BOOTSTRAP_ADMIN_NAME", "System Admin"),
	}
	if s := os.Getenv("JWT_EXPIRES_IN"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.JWTExpiresIn = d
		}
	}
	if s := os.Getenv("PASSWORD_MIN_LENGTH"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			c.PasswordMinLength = n
		}
	}
	for _, d := range strings.Split(os.Getenv("ALLOWED_EMAIL_DOMAINS"), ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			c.AllowedEmailDomains = append(c.AllowedEmailDomains, d)
		}
	}
	return c
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
