package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/vellum/pkg/httpx"
	"github.com/aussiebroadwan/vellum/pkg/jwtx"
)

// Store drivers selectable with STORE_DRIVER.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"
)

type Config struct {
	Origins        []string // Required: exact Origin values allowed on state-changing requests
	ClientIDs      []string // Required: Google OAuth client ids accepted as aud
	KeySetURL      string   // Optional: Google JWKS endpoint (default: jwtx.GoogleKeySetURL)
	HMACSecret     []byte   // Required unless HMACSecretFile is set: access token HMAC key
	HMACSecretFile string   // Optional: HMAC key file, generated on first start when missing

	AccessTTL     time.Duration // Access cookie and token lifetime (default: 14d)
	RefreshTTL    time.Duration // Refresh cookie and session lifetime (default: 365d)
	KeySetTTL     time.Duration // JWKS cache lifetime (default: 10m)
	KeySetTimeout time.Duration // JWKS fetch timeout (default: 5s)

	SessionRateLimit httpx.RateLimitConfig // RATELIMIT_SESSION_* overrides of httpx.SessionLimit

	StoreDriver  string // sqlite, redis or memory (default: sqlite)
	DatabaseFile string // SQLite database file (default: ./auth.db)
	RedisURL     string // Required for the redis driver
	RedisPrefix  string // Key prefix for the redis driver (default: vellum:rs:)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Origins:          getEnvList("APP_ORIGINS"),
		ClientIDs:        getEnvList("GOOGLE_CLIENT_IDS"),
		KeySetURL:        getEnvOrDefault("GOOGLE_JWKS_URL", jwtx.GoogleKeySetURL),
		HMACSecret:       []byte(os.Getenv("SESSION_HMAC_SECRET")),
		HMACSecretFile:   os.Getenv("SESSION_HMAC_SECRET_FILE"),
		AccessTTL:        getEnvSecondsOrDefault("ACCESS_TTL_SECONDS", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:       getEnvSecondsOrDefault("REFRESH_TTL_SECONDS", jwtx.DefaultRefreshTokenTTL),
		KeySetTTL:        getEnvDurationOrDefault("JWKS_CACHE_TTL", jwtx.DefaultKeySetTTL),
		KeySetTimeout:    getEnvDurationOrDefault("JWKS_FETCH_TIMEOUT", jwtx.DefaultKeySetFetchTimeout),
		SessionRateLimit: httpx.ParseRateLimitFromEnv("SESSION", httpx.SessionLimit),

		StoreDriver:  strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverSQLite)),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		RedisURL:     os.Getenv("REDIS_URL"),
		RedisPrefix:  os.Getenv("REDIS_KEY_PREFIX"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error

	if len(c.Origins) == 0 {
		errs = append(errs, errors.New("APP_ORIGINS is required"))
	}
	if len(c.ClientIDs) == 0 {
		errs = append(errs, errors.New("GOOGLE_CLIENT_IDS is required"))
	}
	if len(c.HMACSecret) == 0 && c.HMACSecretFile == "" {
		errs = append(errs, errors.New("SESSION_HMAC_SECRET or SESSION_HMAC_SECRET_FILE is required"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}

	switch c.StoreDriver {
	case StoreDriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for the sqlite driver"))
		}
	case StoreDriverRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis driver"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvSecondsOrDefault reads a whole number of seconds. Non-positive or
// unparsable values keep the default.
func getEnvSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	seconds := getEnvIntOrDefault(key, 0)
	if seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
