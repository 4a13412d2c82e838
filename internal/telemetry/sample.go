package telemetry

import (
	"errors"
	"time"
)

var (
	// ErrNoSamples is returned when an analysis is requested for an empty
	// sample set. This is the only fatal input error in the pipeline.
	ErrNoSamples = errors.New("no samples")
)

// Sample is one telemetry point from an imported activity. Samples are
// produced by the import pipeline and are immutable once ingested.
type Sample struct {
	// T is the relative offset from the start of the ride, in seconds.
	T float64 `json:"t"`

	// TAbs is the absolute timestamp of the sample, if the import carried one.
	TAbs *time.Time `json:"t_abs,omitempty"`

	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	AltitudeM  float64 `json:"altitude_m"`
	VMs        float64 `json:"v_ms"`
	HeadingDeg float64 `json:"heading_deg"`
	Moving     bool    `json:"moving"`

	// DeviceWatts is the power-meter reading, when the rider has one.
	DeviceWatts *float64 `json:"device_watts,omitempty"`
}

// HasCoordinates reports whether the sample carries a usable GPS fix.
// (0, 0) is treated as a missing fix rather than a point in the Gulf of Guinea.
func (s Sample) HasCoordinates() bool {
	if s.Lat == nil || s.Lon == nil {
		return false
	}
	lat, lon := *s.Lat, *s.Lon
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return true
}

// HasSpeed reports whether the sample has a usable ground speed.
func (s Sample) HasSpeed() bool {
	return s.VMs > 0
}

// DeviceWattSeries extracts the device-measured watt series, one entry per
// sample, with NaN-free gaps represented as nil.
func DeviceWattSeries(samples []Sample) []*float64 {
	out := make([]*float64, len(samples))
	any := false
	for i, s := range samples {
		if s.DeviceWatts != nil {
			v := *s.DeviceWatts
			out[i] = &v
			any = true
		}
	}
	if !any {
		return nil
	}
	return out
}

// Validate checks the minimal input contract for analysis.
func Validate(samples []Sample) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	return nil
}
