package weather

import (
	"errors"
	"sort"
	"time"

	"github.com/veloforge/rideanalysis/internal/telemetry"
)

// ErrNoKey signals that no weather key can be derived from the sample set.
// It is non-fatal: the caller disables weather for the analysis and proceeds.
var ErrNoKey = errors.New("no weather key derivable from samples")

// ResolveKey derives the canonical (lat, lon, ts_hour) cache key from a
// telemetry trace.
//
// ts_hour is the first absolute timestamp in the set, floored to the start of
// its hour in UTC. Latitude and longitude are the medians over all samples
// with a valid fix; the median keeps a single GPS glitch from moving the key
// to a different grid cell. The result is independent of sample order.
func ResolveKey(samples []telemetry.Sample) (Key, error) {
	if len(samples) == 0 {
		return Key{}, ErrNoKey
	}

	var earliest *time.Time
	lats := make([]float64, 0, len(samples))
	lons := make([]float64, 0, len(samples))

	for _, s := range samples {
		if s.TAbs != nil && !s.TAbs.IsZero() {
			if earliest == nil || s.TAbs.Before(*earliest) {
				t := *s.TAbs
				earliest = &t
			}
		}
		if s.HasCoordinates() {
			lats = append(lats, *s.Lat)
			lons = append(lons, *s.Lon)
		}
	}

	if earliest == nil || len(lats) == 0 {
		return Key{}, ErrNoKey
	}

	return Key{
		Lat:    median(lats),
		Lon:    median(lons),
		TsHour: earliest.UTC().Truncate(time.Hour),
	}, nil
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
