package calibration

import (
	"testing"

	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/weather"
)

func ptr(v float64) *float64 { return &v }

func TestEvaluateConstantOffset(t *testing.T) {
	// 10 overlapping points with a constant 5 W offset.
	predicted := make([]float64, 10)
	device := make([]*float64, 10)
	for i := range predicted {
		predicted[i] = 200 + float64(i)
		device[i] = ptr(195 + float64(i))
	}

	out := Evaluate(predicted, device)
	if out.Status != StatusOK {
		t.Fatalf("expected status ok, got %q", out.Status)
	}
	if !out.Calibrated {
		t.Fatalf("expected calibrated=true")
	}
	if out.MAE == nil || *out.MAE != 5.0 {
		t.Fatalf("expected MAE 5.0, got %v", out.MAE)
	}
}

func TestEvaluateNoDeviceSeries(t *testing.T) {
	out := Evaluate([]float64{200, 210, 220}, nil)
	if out.Status != StatusNotAvailable {
		t.Fatalf("expected not_available, got %q", out.Status)
	}
	if out.Calibrated || out.MAE != nil {
		t.Fatalf("no-device outcome must carry no MAE")
	}
}

func TestEvaluateNotEnoughSamples(t *testing.T) {
	out := Evaluate([]float64{200, 210}, []*float64{ptr(195), ptr(205)})
	if out.Status != StatusNotEnoughSamples {
		t.Fatalf("expected not_enough_samples, got %q", out.Status)
	}
}

func TestEvaluateNotEnoughOverlap(t *testing.T) {
	// Long series, but the device dropped out on all but two points.
	predicted := []float64{200, 210, 220, 230, 240}
	device := []*float64{ptr(195), nil, nil, ptr(225), nil}

	out := Evaluate(predicted, device)
	if out.Status != StatusNotEnoughOverlap {
		t.Fatalf("expected not_enough_overlap, got %q", out.Status)
	}
}

func TestEstimatedErrorRangeNarrowsWithCompleteness(t *testing.T) {
	empty := EstimatedErrorPctRange(profile.Params{})
	if empty != [2]float64{17.0, 19.0} {
		t.Fatalf("empty profile: expected [17 19], got %v", empty)
	}

	full := profile.Params{
		RiderWeightKg: ptr(75),
		BikeWeightKg:  ptr(8),
		TireWidthMm:   ptr(28),
		TireQuality:   "performance",
		BikeType:      "road",
		CdA:           ptr(0.28),
	}
	got := EstimatedErrorPctRange(full)
	// All bonuses sum to 18; the center clamps at the 2% floor.
	if got != [2]float64{2.0, 3.0} {
		t.Fatalf("full profile: expected [2 3], got %v", got)
	}

	if got[1]-got[0] > empty[1]-empty[0]+1e-9 {
		t.Fatalf("range must not widen with completeness")
	}
}

func TestConditionHint(t *testing.T) {
	if h := ConditionHint(nil); h != "normal" {
		t.Fatalf("nil snapshot: expected normal, got %q", h)
	}

	calm := &weather.Snapshot{WindMs: 2.0, Condition: weather.ConditionClear}
	if h := ConditionHint(calm); h != "normal" {
		t.Fatalf("calm: expected normal, got %q", h)
	}

	windy := &weather.Snapshot{WindMs: 6.5, Condition: weather.ConditionCloudy}
	if h := ConditionHint(windy); h != "windy" {
		t.Fatalf("expected windy, got %q", h)
	}

	// Wet wins over windy.
	wetAndWindy := &weather.Snapshot{WindMs: 6.5, Condition: weather.ConditionRain}
	if h := ConditionHint(wetAndWindy); h != "wet" {
		t.Fatalf("expected wet to dominate, got %q", h)
	}

	drizzle := &weather.Snapshot{WindMs: 1.0, PrecipMm: 0.4, Condition: weather.ConditionCloudy}
	if h := ConditionHint(drizzle); h != "wet" {
		t.Fatalf("precipitation alone should hint wet, got %q", h)
	}
}
