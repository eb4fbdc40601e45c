package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the portal API.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	TokenSecret     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Timezone        string
	LogLevel        string
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; required values and unparsable
// entries are reported together so one run surfaces every problem.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLiteDSN:       "file:portal.db?_foreign_keys=on",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		Timezone:        "America/Sao_Paulo",
		LogLevel:        "info",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("PORTAL_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "PORTAL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("PORTAL_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("PORTAL_TOKEN_SECRET")); secret == "" {
		missing = append(missing, "PORTAL_TOKEN_SECRET")
	} else {
		cfg.TokenSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("PORTAL_ACCESS_TOKEN_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "PORTAL_ACCESS_TOKEN_TTL")
		} else {
			cfg.AccessTokenTTL = ttl
		}
	}

	if ttlValue := strings.TrimSpace(os.Getenv("PORTAL_REFRESH_TOKEN_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "PORTAL_REFRESH_TOKEN_TTL")
		} else {
			cfg.RefreshTokenTTL = ttl
		}
	}

	if tz := strings.TrimSpace(os.Getenv("PORTAL_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "PORTAL_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if level := strings.TrimSpace(os.Getenv("PORTAL_LOG_LEVEL")); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "PORTAL_LOG_LEVEL")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
