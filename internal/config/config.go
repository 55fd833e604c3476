// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting of the formsync tools.
type Config struct {
	// APIURL is the backend base URL.
	APIURL string
	// TinyMCEKey is the rich-text editor license key, passed through to
	// front ends.
	TinyMCEKey string

	SessionDB string

	LogLevel  slog.Level
	LogFormat string

	HTTPTimeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	CacheSize int
	CacheTTL  time.Duration

	// PreviewDir holds thumbnails of pending uploads. Empty keeps previews
	// in memory.
	PreviewDir string
	// SchemaDir holds YAML or JSON entity declarations that override the
	// built-in catalog.
	SchemaDir string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.APIURL = strings.TrimRight(getEnvDefault("NEXT_PUBLIC_API_URL", "http://localhost:8000"), "/")
	cfg.TinyMCEKey = os.Getenv("NEXT_PUBLIC_TINYMCE_API_KEY")

	cfg.SessionDB = os.Getenv("FORMSYNC_SESSION_DB")
	if cfg.SessionDB == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("FORMSYNC_SESSION_DB: not set and home directory unknown: %w", err)
		}
		cfg.SessionDB = filepath.Join(home, ".formsync", "session.db")
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FORMSYNC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FORMSYNC_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("FORMSYNC_LOG_FORMAT", "text")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FORMSYNC_LOG_FORMAT: unsupported format %q, want json or text", cfg.LogFormat)
	}

	cfg.HTTPTimeout, err = getEnvDuration("FORMSYNC_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FORMSYNC_HTTP_TIMEOUT: %w", err)
	}
	cfg.RateLimit, err = getEnvFloat("FORMSYNC_RATE_LIMIT", 0)
	if err != nil {
		return nil, fmt.Errorf("FORMSYNC_RATE_LIMIT: %w", err)
	}
	cfg.CacheSize, err = getEnvInt("FORMSYNC_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("FORMSYNC_CACHE_SIZE: %w", err)
	}
	cfg.CacheTTL, err = getEnvDuration("FORMSYNC_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FORMSYNC_CACHE_TTL: %w", err)
	}

	cfg.PreviewDir = os.Getenv("FORMSYNC_PREVIEW_DIR")
	cfg.SchemaDir = os.Getenv("FORMSYNC_SCHEMA_DIR")
	return cfg, nil
}

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid non-negative number %q", val)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use Go syntax: 30s, 1m)", val)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q, want debug, info, warn or error", level)
	}
}
