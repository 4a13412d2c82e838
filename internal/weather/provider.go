package weather

import (
	"context"
	"errors"
	"time"
)

// ErrFetchFailed classifies provider failures (timeout, non-2xx, malformed
// payload). It is non-fatal to the analysis pipeline.
var ErrFetchFailed = errors.New("weather fetch failed")

// Observation is a single provider's raw reading for a key. Wind speed is at
// the provider's 10 m reference height; scaling to rider height happens in
// the cache, not here.
type Observation struct {
	ObservedAt  time.Time
	Wind10mMs   float64
	WindDirDeg  float64
	AirTempC    float64
	PressureHpa float64
	HumidityPct float64
	PrecipMm    float64
	Condition   Condition
}

// Provider abstracts a historical weather data source (e.g. the Open-Meteo
// archive API).
type Provider interface {
	// ID names the provider; it participates in the cache fingerprint and
	// must stay stable across releases.
	ID() string
	Fetch(ctx context.Context, key Key) (Observation, error)
}
