package calibration

import (
	"math"

	"github.com/veloforge/rideanalysis/internal/common"
	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/weather"
)

// Status describes the outcome of comparing predicted power against a
// device-measured series.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNotEnoughOverlap Status = "not_enough_overlap"
	StatusNotEnoughSamples Status = "not_enough_samples"
	StatusNotAvailable     Status = "not_available"
)

// MinOverlapPoints is the smallest overlap for which an MAE is meaningful.
const MinOverlapPoints = 3

// Outcome is the calibration verdict attached to an analysis result.
type Outcome struct {
	Status     Status   `json:"status"`
	Calibrated bool     `json:"calibrated"`
	MAE        *float64 `json:"mae,omitempty"`
}

// Evaluate aligns the predicted and device watt series by index over their
// overlapping region and computes the mean absolute error. device entries may
// be nil where the power meter dropped out.
func Evaluate(predicted []float64, device []*float64) Outcome {
	if len(device) == 0 {
		return Outcome{Status: StatusNotAvailable}
	}
	if len(predicted) < MinOverlapPoints || len(device) < MinOverlapPoints {
		return Outcome{Status: StatusNotEnoughSamples}
	}

	overlap := len(predicted)
	if len(device) < overlap {
		overlap = len(device)
	}

	var sumAbs float64
	pairs := 0
	for i := 0; i < overlap; i++ {
		d := device[i]
		if d == nil || math.IsNaN(*d) || math.IsNaN(predicted[i]) {
			continue
		}
		sumAbs += math.Abs(predicted[i] - *d)
		pairs++
	}

	if pairs < MinOverlapPoints {
		return Outcome{Status: StatusNotEnoughOverlap}
	}

	mae := sumAbs / float64(pairs)
	return Outcome{Status: StatusOK, Calibrated: true, MAE: &mae}
}

// Error-range heuristic: start pessimistic and subtract a bonus per known
// physical field, clamped to [2, 20] percent.
const (
	baseErrorPct = 18.0
	minErrorPct  = 2.0
	maxErrorPct  = 20.0
)

// EstimatedErrorPctRange returns the [lo, hi] estimated error percentage for
// the prediction, narrowing as the profile gets more complete.
func EstimatedErrorPctRange(p profile.Params) [2]float64 {
	bonus := 0.0
	if p.RiderWeightKg != nil {
		bonus += 4
	}
	if p.BikeWeightKg != nil {
		bonus += 3
	}
	if p.TireWidthMm != nil {
		bonus += 3
	}
	if p.TireQuality != "" {
		bonus += 3
	}
	if p.BikeType != "" {
		bonus += 2
	}
	if p.CdA != nil {
		bonus += 3
	}

	center := clamp(baseErrorPct-bonus, minErrorPct, maxErrorPct)
	lo := clamp(center-1.0, minErrorPct, maxErrorPct)
	hi := clamp(center+1.0, minErrorPct, maxErrorPct)
	return [2]float64{round1(lo), round1(hi)}
}

// WindyThresholdMs is the rider-height wind speed above which a ride is
// hinted as windy.
const WindyThresholdMs = 4.0

// ConditionHint classifies the ride's weather for the quality report. Wet
// conditions dominate wind: rain changes rolling resistance more than a
// moderate breeze changes drag.
func ConditionHint(wx *weather.Snapshot) string {
	if wx == nil {
		return "normal"
	}

	hint := "normal"
	if wx.WindMs > WindyThresholdMs {
		hint = "windy"
	}

	wet := wx.PrecipMm > 0 ||
		common.HasAny(string(wx.Condition), "rain", "storm", "wet")
	if wet {
		hint = "wet"
	}
	return hint
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
