package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/veloforge/rideanalysis/internal/calibration"
	"github.com/veloforge/rideanalysis/internal/power"
	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/resultstore"
	"github.com/veloforge/rideanalysis/internal/telemetry"
	"github.com/veloforge/rideanalysis/internal/weather"
)

// Source tags on returned results.
const (
	SourceCache      = "cache"
	SourceRecomputed = "recomputed"
	SourceFallback   = "fallback"
)

// Reason codes recorded in the debug trail.
const (
	ReasonOK                 = "ok"
	ReasonWeatherDisabled    = "weather_disabled"
	ReasonWeatherNoKey       = "weather_no_key"
	ReasonWeatherFetchFailed = "weather_fetch_failed"
	ReasonModelFailed        = "model_failed"
	ReasonStaleCache         = "stale_cache_detected"
)

// Options control a single analysis invocation.
type Options struct {
	ForceRecompute bool `json:"force_recompute"`
	DisableWeather bool `json:"disable_weather"`
}

// Request is the core entry-point contract consumed by the transport layer.
type Request struct {
	SessionID       string
	Samples         []telemetry.Sample
	ProfileOverride *profile.Params
	Options         Options
}

// Orchestrator composes the weather cache, power dispatcher, calibration
// evaluator and result store into the analyze pipeline. All collaborators are
// injected at construction; the orchestrator holds no other mutable state
// beyond the per-session recompute guard.
type Orchestrator struct {
	store      *resultstore.Store
	cache      *weather.Cache
	dispatcher *power.Dispatcher
	profiles   profile.Service

	// recomputes collapses concurrent recomputes for the same session id into
	// a single run; racing callers share its result.
	recomputes singleflight.Group
}

func NewOrchestrator(store *resultstore.Store, cache *weather.Cache, dispatcher *power.Dispatcher, profiles profile.Service) *Orchestrator {
	return &Orchestrator{
		store:      store,
		cache:      cache,
		dispatcher: dispatcher,
		profiles:   profiles,
	}
}

// Analyze runs the pipeline for one session:
//
//	CacheCheck -> hit: return | miss/forced/stale: Recompute
//	Recompute = WeatherResolve -> ModelDispatch -> PostProcess -> Persist
//
// Weather and model availability problems degrade and are recorded in the
// debug trail; only an empty sample set aborts. Every invocation yields
// either a success result or a structured error result.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*resultstore.PersistedResult, error) {
	if err := telemetry.Validate(req.Samples); err != nil {
		return nil, err
	}

	prof := o.resolveProfile(req)

	if !req.Options.ForceRecompute {
		cached, err := o.store.PickBest(req.SessionID)
		if err == nil {
			if !o.store.IsStale(cached, prof.ProfileVersion) {
				hit := *cached
				hit.Source = SourceCache
				return &hit, nil
			}
			log.Printf("analysis: %s for %s (have %s, want %s)",
				ReasonStaleCache, req.SessionID, cached.ProfileVersion, prof.ProfileVersion)
		} else if !errors.Is(err, resultstore.ErrNotFound) {
			log.Printf("analysis: cache check failed for %s: %v", req.SessionID, err)
		}
	}

	v, err, _ := o.recomputes.Do(req.SessionID, func() (interface{}, error) {
		return o.recompute(ctx, req, prof)
	})
	if v == nil {
		return nil, err
	}
	return v.(*resultstore.PersistedResult), err
}

func (o *Orchestrator) resolveProfile(req Request) profile.Params {
	if req.ProfileOverride != nil {
		return profile.Normalize(*req.ProfileOverride, time.Now())
	}
	return o.profiles.Current()
}

func (o *Orchestrator) recompute(ctx context.Context, req Request, prof profile.Params) (*resultstore.PersistedResult, error) {
	started := time.Now()
	debug := map[string]string{
		"trace_id":                 uuid.NewString(),
		"profile_version":          prof.ProfileVersion,
		"profile_completeness_pct": strconv.Itoa(profile.CompletenessPct(prof)),
	}

	wx, weatherReason := o.resolveWeather(ctx, req, debug)
	debug["weather_reason"] = weatherReason

	metrics, modelName, err := o.dispatcher.Compute(ctx, req.Samples, prof, wx)
	debug["model"] = modelName
	if err != nil {
		return o.errorResult(req, prof, wx, debug, started)
	}

	o.postProcess(&metrics, prof)

	device := telemetry.DeviceWattSeries(req.Samples)
	outcome := calibration.Evaluate(metrics.WattSeries, device)
	errRange := calibration.EstimatedErrorPctRange(prof)
	hint := calibration.ConditionHint(wx)

	result := &resultstore.PersistedResult{
		SessionID:      req.SessionID,
		ProfileVersion: prof.ProfileVersion,
		WeatherSource:  weatherSource(wx),
		Source:         SourceRecomputed,
		Metrics: resultstore.Metrics{
			PrecisionWatt:          metrics.PrecisionWatt,
			PrecisionWattCI:        metrics.PrecisionWattCI,
			DragWatt:               metrics.DragWatt,
			RollingWatt:            metrics.RollingWatt,
			GravityWatt:            metrics.GravityWatt,
			TotalWatt:              metrics.TotalWatt,
			AeroFraction:           metrics.AeroFraction,
			CalibrationMae:         outcome.MAE,
			Calibrated:             outcome.Calibrated,
			CalibrationStatus:      string(outcome.Status),
			WeatherUsed:            metrics.WeatherApplied,
			WeatherMeta:            wx,
			WeatherFp:              weatherFingerprint(wx),
			ProfileUsed:            prof,
			WattSeries:             finiteSeries(metrics.WattSeries),
			RelWindMs:              metrics.RelWindMs,
			EstimatedErrorPctRange: errRange[:],
			ConditionHint:          hint,
		},
		Debug: debug,
	}

	debug["reason"] = ReasonOK
	debug["elapsed_ms"] = strconv.FormatInt(time.Since(started).Milliseconds(), 10)

	if err := o.store.Save(req.SessionID, result); err != nil {
		// The computed result is still good; the caller gets it together with
		// the persistence failure. Atomic writes guarantee no partial file
		// was left behind.
		log.Printf("analysis: persist failed for %s: %v", req.SessionID, err)
		return result, fmt.Errorf("persist result for %s: %w", req.SessionID, err)
	}

	return result, nil
}

// resolveWeather derives the key and fetches the snapshot. Every failure mode
// is non-fatal: the analysis proceeds without weather.
func (o *Orchestrator) resolveWeather(ctx context.Context, req Request, debug map[string]string) (*weather.Snapshot, string) {
	if req.Options.DisableWeather {
		return nil, ReasonWeatherDisabled
	}
	if o.cache == nil {
		return nil, ReasonWeatherDisabled
	}

	key, err := weather.ResolveKey(req.Samples)
	if err != nil {
		log.Printf("analysis: no weather key for %s: %v", req.SessionID, err)
		return nil, ReasonWeatherNoKey
	}
	debug["weather_key"] = key.String()

	snap, err := o.cache.Fetch(ctx, key)
	if err != nil {
		log.Printf("analysis: weather fetch failed for %s: %v", req.SessionID, err)
		return nil, ReasonWeatherFetchFailed
	}
	return &snap, ReasonOK
}

// postProcess converts wheel power to rider power using the profile's crank
// efficiency. Ratios outside (0.5, 1.0] are garbage input and fall back to
// the seasonal default.
func (o *Orchestrator) postProcess(metrics *power.Metrics, prof profile.Params) {
	ratio := prof.CrankEfficiencyPct / 100
	if ratio <= 0.5 {
		ratio = profile.SeasonalCrankEfficiencyPct(time.Now()) / 100
	}
	if ratio > 1.0 {
		ratio = 1.0
	}

	metrics.PrecisionWatt /= ratio
	metrics.PrecisionWattCI /= ratio
	for i := range metrics.WattSeries {
		metrics.WattSeries[i] /= ratio
	}
}

// errorResult is the structured terminal state for "no model produced usable
// numbers". It is persisted like any other result; the completeness predicate
// keeps it from ever being served as a cache hit.
func (o *Orchestrator) errorResult(req Request, prof profile.Params, wx *weather.Snapshot, debug map[string]string, started time.Time) (*resultstore.PersistedResult, error) {
	debug["reason"] = ReasonModelFailed
	debug["elapsed_ms"] = strconv.FormatInt(time.Since(started).Milliseconds(), 10)

	result := &resultstore.PersistedResult{
		SessionID:      req.SessionID,
		ProfileVersion: prof.ProfileVersion,
		WeatherSource:  weatherSource(wx),
		Source:         SourceFallback,
		Metrics: resultstore.Metrics{
			CalibrationStatus: string(calibration.StatusNotAvailable),
			WeatherUsed:       false,
			WeatherMeta:       wx,
			WeatherFp:         weatherFingerprint(wx),
			ProfileUsed:       prof,
		},
		Debug: debug,
	}

	if err := o.store.Save(req.SessionID, result); err != nil {
		log.Printf("analysis: persist of error result failed for %s: %v", req.SessionID, err)
	}
	return result, nil
}

func weatherSource(wx *weather.Snapshot) string {
	if wx == nil {
		return "unavailable"
	}
	return wx.Provider
}

func weatherFingerprint(wx *weather.Snapshot) string {
	if wx == nil {
		return ""
	}
	return wx.Fingerprint
}

// finiteSeries zeroes non-finite entries (stopped samples carry NaN in the
// model output) so the persisted document stays valid JSON while the series
// keeps one slot per input sample.
func finiteSeries(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
	}
	return out
}
