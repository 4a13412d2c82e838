package power

import (
	"context"
	"errors"

	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/telemetry"
	"github.com/veloforge/rideanalysis/internal/weather"
)

var (
	// ErrModelUnavailable means the primary engine cannot be reached. It is
	// non-fatal; the dispatcher switches to the fallback model.
	ErrModelUnavailable = errors.New("power model unavailable")

	// ErrModelFailed means a model ran but produced no usable numbers.
	ErrModelFailed = errors.New("power model produced no usable metrics")
)

// Metrics is the normalized output shape shared by every model path. Callers
// never need to know which model produced it.
type Metrics struct {
	DragWatt        float64 `json:"drag_watt"`
	RollingWatt     float64 `json:"rolling_watt"`
	GravityWatt     float64 `json:"gravity_watt"`
	TotalWatt       float64 `json:"total_watt"`
	PrecisionWatt   float64 `json:"precision_watt"`
	PrecisionWattCI float64 `json:"precision_watt_ci"`
	AeroFraction    float64 `json:"aero_fraction"`

	// WattSeries is the per-sample predicted wheel power.
	WattSeries []float64 `json:"watt_series,omitempty"`

	// RelWindMs is the per-sample wind component along the rider's heading,
	// present only when weather was applied and headings are known.
	RelWindMs []float64 `json:"rel_wind_ms,omitempty"`

	// WeatherApplied reports whether a weather snapshot influenced the
	// numbers. It reflects weather availability, never model availability.
	WeatherApplied bool `json:"weather_applied"`
}

// Model computes power metrics for a sample set. weather may be nil when
// weather is unavailable or disabled.
type Model interface {
	Name() string
	Compute(ctx context.Context, samples []telemetry.Sample, prof profile.Params, wx *weather.Snapshot) (Metrics, error)
}
