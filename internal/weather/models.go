package weather

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Key identifies one weather cache entry: the ride's median position and the
// hour the ride started in. It is a pure function of the sample set.
type Key struct {
	Lat    float64   `json:"lat"`
	Lon    float64   `json:"lon"`
	TsHour time.Time `json:"ts_hour"` // floored to the hour, always UTC
}

// String returns a canonical representation used for logging and file names.
func (k Key) String() string {
	return fmt.Sprintf("%.4f:%.4f:%d", roundCoord(k.Lat), roundCoord(k.Lon), k.TsHour.Unix())
}

// Fingerprint hashes the key together with the provider identity. The fetched
// values never participate, so re-fetching the same coordinates and hour keeps
// the fingerprint stable even when the provider revises its dataset.
func (k Key) Fingerprint(providerID string) string {
	canon := fmt.Sprintf("%d|%.4f|%.4f|%s",
		k.TsHour.Unix(), roundCoord(k.Lat), roundCoord(k.Lon), providerID)
	sum := sha1.Sum([]byte(canon))
	return hex.EncodeToString(sum[:])[:16]
}

func roundCoord(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Snapshot is the normalized weather view used by the power models. WindMs is
// already scaled to rider height; callers must not rescale it.
type Snapshot struct {
	Key         Key       `json:"key"`
	WindMs      float64   `json:"wind_ms"`
	WindDirDeg  float64   `json:"wind_dir_deg"`
	AirTempC    float64   `json:"air_temp_c"`
	PressureHpa float64   `json:"air_pressure_hpa"`
	HumidityPct float64   `json:"humidity_pct"`
	PrecipMm    float64   `json:"precip_mm"`
	Condition   Condition `json:"condition"`
	Provider    string    `json:"provider"`
	FetchedAt   time.Time `json:"fetched_at"`

	// Fingerprint identifies the (key, provider) pair, independent of the
	// fetched values above.
	Fingerprint string `json:"fingerprint"`
}
