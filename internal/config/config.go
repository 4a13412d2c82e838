package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds everything the process needs, read once at startup.
type AppConfig struct {
	// DataDir is the root for all disk-backed state.
	DataDir string

	// ResultsDir is the canonical location for persisted analysis results.
	ResultsDir string

	// LegacyResultDirs are additional read-only locations scanned when
	// picking the best persisted result (older deployments wrote elsewhere).
	LegacyResultDirs []string

	// WeatherCacheDir holds the on-disk weather cache.
	WeatherCacheDir string

	// WeatherFetchTimeout bounds each outbound weather provider call.
	WeatherFetchTimeout time.Duration

	// WeatherCacheMaxAge controls pruning of old weather cache entries.
	WeatherCacheMaxAge time.Duration

	// EngineURL points at the native power engine; empty disables the
	// native path entirely (fallback physics only).
	EngineURL string

	// MaintenanceInterval controls the periodic cache/temp-file sweep.
	MaintenanceInterval time.Duration

	// HTTPTimeout applies to all outbound HTTP calls.
	HTTPTimeout time.Duration

	// MaxBodyMB caps inbound request bodies; long rides at 1 Hz produce
	// multi-megabyte sample payloads.
	MaxBodyMB int

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.DataDir = getenvDefault("DATA_DIR", "data")
	cfg.ResultsDir = getenvDefault("RESULTS_DIR", filepath.Join(cfg.DataDir, "results"))
	cfg.WeatherCacheDir = getenvDefault("WEATHER_CACHE_DIR", filepath.Join(cfg.DataDir, "weather"))

	if legacy := os.Getenv("LEGACY_RESULT_DIRS"); legacy != "" {
		cfg.LegacyResultDirs = filepath.SplitList(legacy)
	}

	var err error
	cfg.WeatherFetchTimeout, err = getenvDuration("WEATHER_FETCH_TIMEOUT", "12s")
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_FETCH_TIMEOUT: %w", err)
	}

	cfg.WeatherCacheMaxAge, err = getenvDuration("WEATHER_CACHE_MAX_AGE", "720h") // 30 days
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_CACHE_MAX_AGE: %w", err)
	}

	cfg.MaintenanceInterval, err = getenvDuration("MAINTENANCE_INTERVAL", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid MAINTENANCE_INTERVAL: %w", err)
	}

	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	cfg.EngineURL = os.Getenv("POWER_ENGINE_URL")
	cfg.MaxBodyMB = getenvInt("MAX_BODY_MB", 20)
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	return time.ParseDuration(getenvDefault(key, def))
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
