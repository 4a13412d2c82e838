package power

import (
	"context"
	"errors"
	"log"

	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/telemetry"
	"github.com/veloforge/rideanalysis/internal/weather"
)

// Dispatcher routes compute requests to the native engine when the startup
// probe succeeded, degrading to the internal physics model when the engine is
// absent or a call fails. Both paths produce the same Metrics shape; the path
// actually taken is reported alongside the result, never hidden.
type Dispatcher struct {
	primary  Model // nil when the startup probe failed
	fallback Model
}

// NewDispatcher probes the native model once and fixes the dispatch order for
// the lifetime of the process. native may be nil (no engine configured).
func NewDispatcher(ctx context.Context, native *NativeModel, fallback Model) *Dispatcher {
	d := &Dispatcher{fallback: fallback}

	if native == nil {
		log.Println("power: no native engine configured, using fallback model")
		return d
	}

	if err := native.Probe(ctx); err != nil {
		log.Printf("power: native engine probe failed, using fallback model: %v", err)
		return d
	}

	log.Printf("power: native engine available (%s)", native.Name())
	d.primary = native
	return d
}

// Compute runs the selected model and returns the metrics plus the name of
// the model that produced them.
func (d *Dispatcher) Compute(ctx context.Context, samples []telemetry.Sample, prof profile.Params, wx *weather.Snapshot) (Metrics, string, error) {
	if d.primary != nil {
		metrics, err := d.primary.Compute(ctx, samples, prof, wx)
		if err == nil {
			return metrics, d.primary.Name(), nil
		}
		if errors.Is(err, ErrModelFailed) && !errors.Is(err, ErrModelUnavailable) {
			// The engine ran and rejected the input; the fallback gets a try
			// before we give up entirely.
			log.Printf("power: native engine rejected input, trying fallback: %v", err)
		} else {
			log.Printf("power: native engine call failed, trying fallback: %v", err)
		}
	}

	metrics, err := d.fallback.Compute(ctx, samples, prof, wx)
	if err != nil {
		return Metrics{}, d.fallback.Name(), err
	}
	return metrics, d.fallback.Name(), nil
}

// UsingNative reports whether the startup probe selected the native engine.
func (d *Dispatcher) UsingNative() bool {
	return d.primary != nil
}
