package power

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/telemetry"
	"github.com/veloforge/rideanalysis/internal/weather"
)

func flatSamples(n int, vMs float64) []telemetry.Sample {
	samples := make([]telemetry.Sample, n)
	for i := range samples {
		samples[i] = telemetry.Sample{
			T:         float64(i),
			VMs:       vMs,
			AltitudeM: 40.0,
			Moving:    true,
		}
	}
	return samples
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFallbackUsesDocumentedDefaults(t *testing.T) {
	// Empty profile: every default kicks in (CdA 0.30, Crr 0.004, mass 78,
	// rho 1.225). Flat ride at constant speed: gravity term is zero.
	m := NewFallbackModel()
	v := 9.5

	metrics, err := m.Compute(context.Background(), flatSamples(10, v), profile.Params{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDrag := 0.5 * 1.225 * 0.30 * v * v * v
	wantRoll := 0.004 * 78.0 * 9.80665 * v

	if !almostEqual(metrics.DragWatt, wantDrag) {
		t.Fatalf("drag: expected %v, got %v", wantDrag, metrics.DragWatt)
	}
	if !almostEqual(metrics.RollingWatt, wantRoll) {
		t.Fatalf("rolling: expected %v, got %v", wantRoll, metrics.RollingWatt)
	}
	if !almostEqual(metrics.GravityWatt, 0) {
		t.Fatalf("flat ride gravity should be zero, got %v", metrics.GravityWatt)
	}
	if !almostEqual(metrics.TotalWatt, wantDrag+wantRoll) {
		t.Fatalf("total: expected %v, got %v", wantDrag+wantRoll, metrics.TotalWatt)
	}
	if !almostEqual(metrics.PrecisionWatt, metrics.TotalWatt) {
		t.Fatalf("precision should equal mean total on a uniform ride")
	}
	if len(metrics.WattSeries) != 10 {
		t.Fatalf("expected 10 series points, got %d", len(metrics.WattSeries))
	}
	if metrics.WeatherApplied {
		t.Fatalf("weather_applied must be false without a snapshot")
	}
}

func TestFallbackProfileOverridesDefaults(t *testing.T) {
	m := NewFallbackModel()
	v := 9.5
	cda, crr, rider, bike := 0.25, 0.005, 70.0, 8.0
	prof := profile.Params{CdA: &cda, Crr: &crr, RiderWeightKg: &rider, BikeWeightKg: &bike}

	metrics, err := m.Compute(context.Background(), flatSamples(5, v), prof, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDrag := 0.5 * 1.225 * cda * v * v * v
	wantRoll := crr * (rider + bike) * 9.80665 * v
	if !almostEqual(metrics.DragWatt, wantDrag) {
		t.Fatalf("drag: expected %v, got %v", wantDrag, metrics.DragWatt)
	}
	if !almostEqual(metrics.RollingWatt, wantRoll) {
		t.Fatalf("rolling: expected %v, got %v", wantRoll, metrics.RollingWatt)
	}
}

func TestFallbackGravityFromAltitudeDelta(t *testing.T) {
	m := NewFallbackModel()
	// Climb 1 m per second at 5 m/s with default mass.
	samples := []telemetry.Sample{
		{T: 0, VMs: 5, AltitudeM: 100},
		{T: 1, VMs: 5, AltitudeM: 101},
		{T: 2, VMs: 5, AltitudeM: 102},
	}

	metrics, err := m.Compute(context.Background(), samples, profile.Params{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// First sample has no delta; the other two climb at 78*9.80665*1 W.
	wantGrav := (0 + 78.0*9.80665 + 78.0*9.80665) / 3
	if !almostEqual(metrics.GravityWatt, wantGrav) {
		t.Fatalf("gravity: expected %v, got %v", wantGrav, metrics.GravityWatt)
	}
}

func TestFallbackWeatherChangesAirDensity(t *testing.T) {
	m := NewFallbackModel()
	v := 9.5

	// Cold, high pressure: rho > 1.225, so drag must rise.
	wx := &weather.Snapshot{PressureHpa: 1030, AirTempC: -5}

	dry, err := m.Compute(context.Background(), flatSamples(5, v), profile.Params{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cold, err := m.Compute(context.Background(), flatSamples(5, v), profile.Params{}, wx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cold.DragWatt <= dry.DragWatt {
		t.Fatalf("cold dense air must raise drag: %v <= %v", cold.DragWatt, dry.DragWatt)
	}
	if !cold.WeatherApplied {
		t.Fatalf("weather_applied must be true with a snapshot")
	}
	if len(cold.RelWindMs) != 5 {
		t.Fatalf("expected relative wind series with weather, got %d points", len(cold.RelWindMs))
	}
}

func TestFallbackSeriesStaysAlignedWhenPaused(t *testing.T) {
	m := NewFallbackModel()
	v := 9.5
	samples := flatSamples(6, v)
	samples[2].VMs = 0
	samples[2].Moving = false

	metrics, err := m.Compute(context.Background(), samples, profile.Params{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One slot per input sample, with the paused one marked non-numeric.
	if len(metrics.WattSeries) != len(samples) {
		t.Fatalf("expected %d series points, got %d", len(samples), len(metrics.WattSeries))
	}
	if !math.IsNaN(metrics.WattSeries[2]) {
		t.Fatalf("paused sample must hold NaN, got %v", metrics.WattSeries[2])
	}

	// The aggregates skip the paused sample entirely: flat constant-speed ride,
	// so every moving sample predicts the same constant.
	want := 0.5*1.225*0.30*v*v*v + 0.004*78.0*9.80665*v
	if !almostEqual(metrics.TotalWatt, want) {
		t.Fatalf("total: expected %v, got %v", want, metrics.TotalWatt)
	}
	for i, w := range metrics.WattSeries {
		if i == 2 {
			continue
		}
		if !almostEqual(w, want) {
			t.Fatalf("series[%d]: expected %v, got %v", i, w, want)
		}
	}
}

func TestFallbackNoValidSpeed(t *testing.T) {
	m := NewFallbackModel()
	samples := []telemetry.Sample{{T: 0, VMs: 0}, {T: 1, VMs: 0}}

	_, err := m.Compute(context.Background(), samples, profile.Params{}, nil)
	if !errors.Is(err, ErrModelFailed) {
		t.Fatalf("expected ErrModelFailed, got %v", err)
	}
}
