package config

import (
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATA_DIR", "RESULTS_DIR", "WEATHER_CACHE_DIR", "LEGACY_RESULT_DIRS",
		"WEATHER_FETCH_TIMEOUT", "WEATHER_CACHE_MAX_AGE", "MAINTENANCE_INTERVAL",
		"HTTP_TIMEOUT", "POWER_ENGINE_URL", "MAX_BODY_MB", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != "data" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.ResultsDir != filepath.Join("data", "results") {
		t.Fatalf("results dir must derive from data dir, got %q", cfg.ResultsDir)
	}
	if cfg.WeatherFetchTimeout != 12*time.Second {
		t.Fatalf("expected 12s fetch timeout, got %v", cfg.WeatherFetchTimeout)
	}
	if cfg.MaxBodyMB != 20 {
		t.Fatalf("expected 20 MB body limit, got %d", cfg.MaxBodyMB)
	}
	if cfg.EngineURL != "" {
		t.Fatalf("engine must be disabled by default, got %q", cfg.EngineURL)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/var/lib/rides")
	t.Setenv("WEATHER_FETCH_TIMEOUT", "3s")
	t.Setenv("POWER_ENGINE_URL", "http://engine:9000")
	t.Setenv("MAX_BODY_MB", "5")
	t.Setenv("PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ResultsDir != filepath.Join("/var/lib/rides", "results") {
		t.Fatalf("results dir must follow data dir override, got %q", cfg.ResultsDir)
	}
	if cfg.WeatherFetchTimeout != 3*time.Second {
		t.Fatalf("expected 3s fetch timeout, got %v", cfg.WeatherFetchTimeout)
	}
	if cfg.EngineURL != "http://engine:9000" {
		t.Fatalf("unexpected engine URL: %q", cfg.EngineURL)
	}
	if cfg.MaxBodyMB != 5 {
		t.Fatalf("expected 5 MB body limit, got %d", cfg.MaxBodyMB)
	}
	if cfg.Port != "9999" {
		t.Fatalf("expected overridden port, got %q", cfg.Port)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_FETCH_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unparseable duration")
	}
}
