package power

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/veloforge/rideanalysis/internal/httpx"
	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/telemetry"
	"github.com/veloforge/rideanalysis/internal/weather"
)

// NativeModel talks to the external high-fidelity power engine over HTTP. The
// engine is versioned and opaque; we only probe its version endpoint once at
// startup and post compute requests afterwards. Compute calls go through the
// shared resilience wrapper: transient engine hiccups are retried briefly
// before the dispatcher degrades to the fallback model.
type NativeModel struct {
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
	version string
}

func NewNativeModel(client *http.Client, baseURL string) *NativeModel {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "power-engine",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &NativeModel{
		baseURL: baseURL,
		httpCfg: httpx.ClientConfig{
			Client: client,
			Backoff: httpx.BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     time.Second,
			},
		},
		circuit: cb,
	}
}

func (m *NativeModel) Name() string {
	if m.version != "" {
		return "native-engine/" + m.version
	}
	return "native-engine"
}

// Probe checks the engine's version endpoint. Called once at process start;
// a failure here selects the fallback model for the lifetime of the process.
func (m *NativeModel) Probe(ctx context.Context) error {
	if m.baseURL == "" {
		return fmt.Errorf("%w: no engine URL configured", ErrModelUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/version", nil)
	if err != nil {
		return err
	}

	resp, err := m.httpCfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: version endpoint returned %d", ErrModelUnavailable, resp.StatusCode)
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("%w: malformed version payload: %v", ErrModelUnavailable, err)
	}
	m.version = payload.Version
	return nil
}

type computeRequest struct {
	Samples []telemetry.Sample `json:"samples"`
	Profile profile.Params     `json:"profile"`
	Weather *weather.Snapshot  `json:"weather,omitempty"`
}

func (m *NativeModel) Compute(ctx context.Context, samples []telemetry.Sample, prof profile.Params, wx *weather.Snapshot) (Metrics, error) {
	body, err := json.Marshal(computeRequest{Samples: samples, Profile: prof, Weather: wx})
	if err != nil {
		return Metrics{}, err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, m.baseURL+"/compute", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := httpx.Do(ctx, m.httpCfg, m.circuit, buildRequest)
	if err != nil {
		return Metrics{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	var metrics Metrics
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return Metrics{}, fmt.Errorf("%w: malformed engine payload: %v", ErrModelFailed, err)
	}
	if metrics.PrecisionWatt <= 0 && len(metrics.WattSeries) == 0 {
		return Metrics{}, fmt.Errorf("%w: engine returned empty metrics", ErrModelFailed)
	}

	// The engine reports whether it applied weather itself, but a nil snapshot
	// can never count as applied.
	if wx == nil {
		metrics.WeatherApplied = false
	}
	return metrics, nil
}
