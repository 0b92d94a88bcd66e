package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingBackendURL is returned when FOLIO_BACKEND_URL is not set.
	ErrMissingBackendURL = errors.New("backend URL is required (FOLIO_BACKEND_URL)")
	// ErrMissingBackendKey is returned when FOLIO_BACKEND_KEY is not set.
	ErrMissingBackendKey = errors.New("backend key is required (FOLIO_BACKEND_KEY)")
)

// ServerConfig holds configuration for the Folio server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.folio/folio.db, ":memory:" for testing)

	BackendURL string // Session store URL (redis://...)
	BackendKey string // Project key used to sign access tokens

	GatePatterns []string // Paths intercepted by the session gate
	LoginPath    string
	AdminHome    string

	AccessTTL     time.Duration // Lifetime of an access token
	SessionTTL    time.Duration // Sliding lifetime of a session
	SecureCookies bool

	MediaBucket    string // S3 bucket for uploads; empty disables uploads
	MediaRegion    string
	MediaPublicURL string // Base URL objects are served from
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		LogLevel:     "info",
		LogFormat:    "text",
		GatePatterns: []string{"/admin/*", "/auth/*", "/api/admin/*"},
		LoginPath:    "/auth/login",
		AdminHome:    "/admin",
		AccessTTL:    time.Hour,
		SessionTTL:   7 * 24 * time.Hour,
		MediaRegion:  "us-east-1",
	}
}

// LoadFromEnv returns the defaults overlaid with FOLIO_* environment
// variables. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
func LoadFromEnv() (ServerConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ServerConfig{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultServerConfig()
	cfg.Addr = getEnv("FOLIO_ADDR", cfg.Addr)
	cfg.LogLevel = getEnv("FOLIO_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("FOLIO_LOG_FORMAT", cfg.LogFormat)
	cfg.DBPath = getEnv("FOLIO_DB", cfg.DBPath)
	cfg.BackendURL = getEnv("FOLIO_BACKEND_URL", "")
	cfg.BackendKey = getEnv("FOLIO_BACKEND_KEY", "")
	cfg.LoginPath = getEnv("FOLIO_LOGIN_PATH", cfg.LoginPath)
	cfg.AdminHome = getEnv("FOLIO_ADMIN_HOME", cfg.AdminHome)
	cfg.MediaBucket = getEnv("FOLIO_MEDIA_BUCKET", "")
	cfg.MediaRegion = getEnv("FOLIO_MEDIA_REGION", cfg.MediaRegion)
	cfg.MediaPublicURL = getEnv("FOLIO_MEDIA_PUBLIC_URL", "")

	if v := os.Getenv("FOLIO_GATE_PATTERNS"); v != "" {
		cfg.GatePatterns = splitList(v)
	}

	var err error
	if cfg.AccessTTL, err = getDuration("FOLIO_ACCESS_TTL", cfg.AccessTTL); err != nil {
		return ServerConfig{}, err
	}
	if cfg.SessionTTL, err = getDuration("FOLIO_SESSION_TTL", cfg.SessionTTL); err != nil {
		return ServerConfig{}, err
	}
	if v := os.Getenv("FOLIO_SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("FOLIO_SECURE_COOKIES: %w", err)
		}
		cfg.SecureCookies = b
	}

	return cfg, nil
}

// Validate checks the values that must be present before serving traffic.
func (c ServerConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.BackendURL) == "" {
		errs = append(errs, ErrMissingBackendURL)
	}
	if strings.TrimSpace(c.BackendKey) == "" {
		errs = append(errs, ErrMissingBackendKey)
	}
	for _, p := range c.GatePatterns {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("gate pattern %q must start with /", p))
		}
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		errs = append(errs, fmt.Errorf("login path %q must start with /", c.LoginPath))
	}
	if !strings.HasPrefix(c.AdminHome, "/") {
		errs = append(errs, fmt.Errorf("admin home %q must start with /", c.AdminHome))
	}
	if c.AccessTTL <= 0 || c.SessionTTL <= 0 {
		errs = append(errs, errors.New("access and session TTL must be positive"))
	}
	return errors.Join(errs...)
}

// MediaEnabled reports whether uploads to object storage are configured.
func (c ServerConfig) MediaEnabled() bool {
	return c.MediaBucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
