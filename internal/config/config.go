package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	HTTPPort              string
	APIKey                string
	BCBURL                string
	CDISeriesCode         string
	CDIRequestTimeout     time.Duration
	CDICacheTTL           time.Duration
	CDIFallbackRate       float64
	BusinessTimezone      string
	RateWorkerInterval    time.Duration
	AccrualWorkerInterval time.Duration
	GoogleSheetsID        string
	GoogleCredentialsJSON string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefaultWarn("DATABASE_URL", ""),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		APIKey:                envOrDefault("API_KEY", ""),
		BCBURL:                envOrDefault("BCB_URL", "https://api.bcb.gov.br"),
		CDISeriesCode:         envOrDefault("BCB_CDI_SERIES_CODE", "12"),
		CDIRequestTimeout:     envOrDefaultMillis("CDI_REQUEST_TIMEOUT_MS", 7*time.Second),
		CDICacheTTL:           envOrDefaultMinutes("CDI_CACHE_TTL_MINUTES", 180*time.Minute),
		CDIFallbackRate:       envOrDefaultFloat("CDI_ANNUAL_FALLBACK_RATE", 0),
		BusinessTimezone:      envOrDefault("BUSINESS_TIMEZONE", "America/Sao_Paulo"),
		RateWorkerInterval:    envOrDefaultDuration("RATE_WORKER_INTERVAL", 1*time.Hour),
		AccrualWorkerInterval: envOrDefaultDuration("ACCRUAL_WORKER_INTERVAL", 24*time.Hour),
		GoogleSheetsID:        envOrDefault("GOOGLE_SHEETS_ID", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
	}
}

// Location returns the business calendar time zone, falling back to UTC when
// the zone database does not know it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		slog.Warn("unknown business timezone, using UTC", "timezone", c.BusinessTimezone, "error", err)
		return time.UTC
	}
	return loc
}

// SheetsEnabled reports whether the Google Sheets export is configured.
func (c Config) SheetsEnabled() bool {
	return c.GoogleSheetsID != "" && c.GoogleCredentialsJSON != ""
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

// envOrDefaultFloat accepts a decimal comma.
func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			slog.Warn("invalid number env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func envOrDefaultMillis(key string, defaultVal time.Duration) time.Duration {
	return positiveOr(key, time.Duration(envOrDefaultInt(key, int(defaultVal/time.Millisecond)))*time.Millisecond, defaultVal)
}

func envOrDefaultMinutes(key string, defaultVal time.Duration) time.Duration {
	return positiveOr(key, time.Duration(envOrDefaultInt(key, int(defaultVal/time.Minute)))*time.Minute, defaultVal)
}

func positiveOr(key string, d, defaultVal time.Duration) time.Duration {
	if d <= 0 {
		slog.Warn("non-positive env var, using default", "key", key, "default", defaultVal)
		return defaultVal
	}
	return d
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
