package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/veloforge/rideanalysis/internal/httpx"
	"github.com/veloforge/rideanalysis/internal/weather"
)

// OpenMeteoArchive implements weather.Provider against the Open-Meteo
// historical archive API. It fetches the hourly series for the key's date and
// picks the hour nearest ts_hour. No API key required.
type OpenMeteoArchive struct {
	id      string
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoArchive(client *http.Client) *OpenMeteoArchive {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo-archive",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenMeteoArchive{
		id:      "openmeteo-archive",
		baseURL: "https://archive-api.open-meteo.com/v1/archive",
		httpCfg: httpx.ClientConfig{
			Client: client,
			Backoff: httpx.BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

func (p *OpenMeteoArchive) ID() string {
	return p.id
}

func (p *OpenMeteoArchive) Fetch(ctx context.Context, key weather.Key) (weather.Observation, error) {
	date := key.TsHour.UTC().Format("2006-01-02")

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%.4f", key.Lat))
		values.Set("longitude", fmt.Sprintf("%.4f", key.Lon))
		values.Set("start_date", date)
		values.Set("end_date", date)
		values.Set("hourly", "temperature_2m,relative_humidity_2m,wind_speed_10m,wind_direction_10m,surface_pressure,precipitation,weather_code")
		values.Set("windspeed_unit", "ms")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := httpx.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly struct {
			Time            []string  `json:"time"`
			Temperature2m   []float64 `json:"temperature_2m"`
			Humidity2m      []float64 `json:"relative_humidity_2m"`
			WindSpeed10m    []float64 `json:"wind_speed_10m"`
			WindDir10m      []float64 `json:"wind_direction_10m"`
			SurfacePressure []float64 `json:"surface_pressure"`
			Precipitation   []float64 `json:"precipitation"`
			WeatherCode     []int     `json:"weather_code"`
		} `json:"hourly"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, fmt.Errorf("malformed archive payload: %w", err)
	}
	if len(payload.Hourly.Time) == 0 {
		return weather.Observation{}, fmt.Errorf("archive payload has no hourly data for %s", date)
	}

	idx, ts := nearestHour(payload.Hourly.Time, key.TsHour.UTC())
	if idx < 0 {
		return weather.Observation{}, fmt.Errorf("archive payload has no parseable timestamps for %s", date)
	}

	return weather.Observation{
		ObservedAt:  ts,
		Wind10mMs:   at(payload.Hourly.WindSpeed10m, idx),
		WindDirDeg:  at(payload.Hourly.WindDir10m, idx),
		AirTempC:    at(payload.Hourly.Temperature2m, idx),
		PressureHpa: at(payload.Hourly.SurfacePressure, idx),
		HumidityPct: at(payload.Hourly.Humidity2m, idx),
		PrecipMm:    at(payload.Hourly.Precipitation, idx),
		Condition:   mapWeatherCode(atInt(payload.Hourly.WeatherCode, idx)),
	}, nil
}

// nearestHour returns the index and timestamp of the hourly entry closest to
// target. Entries that fail to parse are skipped.
func nearestHour(times []string, target time.Time) (int, time.Time) {
	bestIdx := -1
	var bestTS time.Time
	bestDiff := math.MaxFloat64

	for i, raw := range times {
		ts, err := parseArchiveTime(raw)
		if err != nil {
			continue
		}
		diff := math.Abs(ts.Sub(target).Seconds())
		if diff < bestDiff {
			bestDiff = diff
			bestIdx = i
			bestTS = ts
		}
	}
	return bestIdx, bestTS
}

// parseArchiveTime handles the archive API's minute-resolution ISO timestamps
// as well as full RFC3339.
func parseArchiveTime(raw string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02T15:04", raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func at(vals []float64, idx int) float64 {
	if idx < 0 || idx >= len(vals) {
		return 0
	}
	return vals[idx]
}

func atInt(vals []int, idx int) int {
	if idx < 0 || idx >= len(vals) {
		return 0
	}
	return vals[idx]
}

// mapWeatherCode maps WMO weather codes to normalized conditions (simplified).
func mapWeatherCode(code int) weather.Condition {
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code >= 45 && code <= 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
