package config

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"NEXT_PUBLIC_API_URL", "NEXT_PUBLIC_TINYMCE_API_KEY", "FORMSYNC_SESSION_DB",
		"FORMSYNC_LOG_LEVEL", "FORMSYNC_LOG_FORMAT", "FORMSYNC_HTTP_TIMEOUT",
		"FORMSYNC_RATE_LIMIT", "FORMSYNC_CACHE_SIZE", "FORMSYNC_CACHE_TTL",
		"FORMSYNC_PREVIEW_DIR", "FORMSYNC_SCHEMA_DIR",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if want := filepath.Join(home, ".formsync", "session.db"); cfg.SessionDB != want {
		t.Errorf("SessionDB = %q, want %q", cfg.SessionDB, want)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" {
		t.Errorf("logging = %v/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.CacheSize != 256 || cfg.CacheTTL != time.Minute || cfg.RateLimit != 0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_URL", "https://api.example.com/")
	t.Setenv("FORMSYNC_SESSION_DB", "/tmp/s.db")
	t.Setenv("FORMSYNC_LOG_LEVEL", "debug")
	t.Setenv("FORMSYNC_LOG_FORMAT", "json")
	t.Setenv("FORMSYNC_RATE_LIMIT", "2.5")
	t.Setenv("FORMSYNC_CACHE_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" || cfg.RateLimit != 2.5 || cfg.CacheTTL != 5*time.Minute {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"FORMSYNC_LOG_LEVEL":    "loud",
		"FORMSYNC_LOG_FORMAT":   "xml",
		"FORMSYNC_HTTP_TIMEOUT": "soon",
		"FORMSYNC_RATE_LIMIT":   "-1",
		"FORMSYNC_CACHE_SIZE":   "many",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("FORMSYNC_SESSION_DB", "/tmp/s.db")
			t.Setenv(key, value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestSetupLoggerHonoursFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&Config{LogLevel: slog.LevelInfo, LogFormat: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown", slog.String("component", "test"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Fatalf("expected JSON output, got %s", out)
	}
}
