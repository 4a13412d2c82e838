package power

import (
	"context"
	"fmt"
	"math"

	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/telemetry"
	"github.com/veloforge/rideanalysis/internal/weather"
)

// Physical constants and profile defaults for the simplified model.
const (
	gravity = 9.80665 // m/s^2

	defaultAirDensity = 1.225 // kg/m^3 at sea level, 15 C
	defaultCdA        = 0.30
	defaultCrr        = 0.004
	defaultMassKg     = 78.0

	// specificGasConstant for dry air, J/(kg·K); used to derive air density
	// from pressure and temperature when a weather snapshot is available.
	specificGasConstant = 287.05
)

// FallbackModel is the internal simplified physics model, used whenever the
// native engine is unavailable or fails. Per sample with valid speed:
//
//	drag    = 0.5 * rho * CdA * v^3
//	rolling = Crr * mass * g * v
//	gravity = mass * g * dh/dt   (when consecutive altitude deltas exist)
//	total   = drag + rolling + gravity
//
// The predicted series carries one entry per input sample so it stays
// index-aligned with the device watt series; samples without usable speed hold
// NaN. Aggregates are means over the valid-speed samples only.
type FallbackModel struct{}

func NewFallbackModel() *FallbackModel {
	return &FallbackModel{}
}

func (m *FallbackModel) Name() string {
	return "fallback-physics"
}

func (m *FallbackModel) Compute(_ context.Context, samples []telemetry.Sample, prof profile.Params, wx *weather.Snapshot) (Metrics, error) {
	cda := defaultCdA
	if prof.CdA != nil && *prof.CdA > 0 {
		cda = *prof.CdA
	}
	crr := defaultCrr
	if prof.Crr != nil && *prof.Crr > 0 {
		crr = *prof.Crr
	}
	mass := totalMassKg(prof)

	rho := defaultAirDensity
	if wx != nil {
		rho = airDensity(wx.PressureHpa, wx.AirTempC)
	}

	var (
		sumDrag, sumRoll, sumGrav, sumTotal float64
		valid                               int
		series                              = make([]float64, 0, len(samples))
		relWind                             []float64
	)

	if wx != nil {
		relWind = make([]float64, 0, len(samples))
	}

	for i, s := range samples {
		if wx != nil {
			relWind = append(relWind, windAlongHeading(wx, s.HeadingDeg))
		}
		if !s.HasSpeed() {
			// No prediction for a stopped sample, but the slot must stay so
			// downstream index alignment holds.
			series = append(series, math.NaN())
			continue
		}
		v := s.VMs

		drag := 0.5 * rho * cda * v * v * v
		roll := crr * mass * gravity * v

		grav := 0.0
		if i > 0 {
			prev := samples[i-1]
			dt := s.T - prev.T
			if dt > 0 {
				grav = mass * gravity * (s.AltitudeM - prev.AltitudeM) / dt
			}
		}

		total := drag + roll + grav

		sumDrag += drag
		sumRoll += roll
		sumGrav += grav
		sumTotal += total
		valid++
		series = append(series, total)
	}

	if valid == 0 {
		return Metrics{}, fmt.Errorf("%w: no samples with valid speed", ErrModelFailed)
	}

	n := float64(valid)
	drag := sumDrag / n
	roll := sumRoll / n
	grav := sumGrav / n
	total := sumTotal / n

	return Metrics{
		DragWatt:        drag,
		RollingWatt:     roll,
		GravityWatt:     grav,
		TotalWatt:       total,
		PrecisionWatt:   total,
		PrecisionWattCI: math.Max(5.0, 0.05*math.Abs(total)),
		AeroFraction:    drag / math.Max(1e-6, math.Abs(total)),
		WattSeries:      series,
		RelWindMs:       relWind,
		WeatherApplied:  wx != nil,
	}, nil
}

func totalMassKg(prof profile.Params) float64 {
	if prof.RiderWeightKg == nil || *prof.RiderWeightKg <= 0 {
		return defaultMassKg
	}
	mass := *prof.RiderWeightKg
	if prof.BikeWeightKg != nil && *prof.BikeWeightKg > 0 {
		mass += *prof.BikeWeightKg
	}
	return mass
}

// airDensity derives rho via the ideal gas law. Falls back to the standard
// density when the snapshot carries no pressure.
func airDensity(pressureHpa, tempC float64) float64 {
	if pressureHpa <= 0 {
		return defaultAirDensity
	}
	return (pressureHpa * 100) / (specificGasConstant * (tempC + 273.15))
}

// windAlongHeading projects the wind vector onto the rider's heading.
// WindDirDeg is the meteorological "blowing from" direction, so a positive
// result is a headwind component.
func windAlongHeading(wx *weather.Snapshot, headingDeg float64) float64 {
	diff := (wx.WindDirDeg - headingDeg) * math.Pi / 180
	return wx.WindMs * math.Cos(diff)
}
