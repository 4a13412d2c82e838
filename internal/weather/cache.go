package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// WindReductionFactor scales the provider's 10 m reference wind down to the
// ~2 m exposure a rider actually sees. This is a model decision: it is applied
// exactly once, inside the cache, so every consumer of a Snapshot gets
// rider-height wind.
const WindReductionFactor = 0.75

// Cache fetches and caches weather snapshots keyed by the canonical Key.
// Entries live both in memory and as JSON files under dir, so restarts keep
// the cache warm. A hit never re-contacts the provider.
type Cache struct {
	provider Provider
	dir      string
	timeout  time.Duration

	mu  sync.Mutex
	mem map[string]Snapshot
}

// NewCache creates a disk-backed weather cache. fetchTimeout bounds each
// provider call; zero means 12s.
func NewCache(provider Provider, dir string, fetchTimeout time.Duration) *Cache {
	if fetchTimeout <= 0 {
		fetchTimeout = 12 * time.Second
	}
	return &Cache{
		provider: provider,
		dir:      dir,
		timeout:  fetchTimeout,
		mem:      make(map[string]Snapshot),
	}
}

// Fetch returns the snapshot for key, from memory, disk, or the provider, in
// that order. Provider failures are returned wrapped in ErrFetchFailed;
// callers treat them as "weather unavailable", not as pipeline failures.
func (c *Cache) Fetch(ctx context.Context, key Key) (Snapshot, error) {
	fp := key.Fingerprint(c.provider.ID())

	c.mu.Lock()
	if snap, ok := c.mem[fp]; ok {
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	if snap, ok := c.loadFromDisk(fp); ok {
		c.mu.Lock()
		c.mem[fp] = snap
		c.mu.Unlock()
		return snap, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	obs, err := c.provider.Fetch(fetchCtx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: provider %s for %s: %v",
			ErrFetchFailed, c.provider.ID(), key.String(), err)
	}

	snap := Snapshot{
		Key:         key,
		WindMs:      obs.Wind10mMs * WindReductionFactor,
		WindDirDeg:  obs.WindDirDeg,
		AirTempC:    obs.AirTempC,
		PressureHpa: obs.PressureHpa,
		HumidityPct: obs.HumidityPct,
		PrecipMm:    obs.PrecipMm,
		Condition:   obs.Condition,
		Provider:    c.provider.ID(),
		FetchedAt:   time.Now().UTC(),
		Fingerprint: fp,
	}

	c.mu.Lock()
	c.mem[fp] = snap
	c.mu.Unlock()

	if err := c.saveToDisk(fp, snap); err != nil {
		// The snapshot is still served from memory; only warm restarts lose it.
		log.Printf("weather: failed to persist cache entry %s: %v", fp, err)
	}

	return snap, nil
}

// ProviderID exposes the provider identity for fingerprinting by callers that
// need it before a fetch (e.g. debug output).
func (c *Cache) ProviderID() string {
	return c.provider.ID()
}

func (c *Cache) entryPath(fp string) string {
	return filepath.Join(c.dir, "weather_"+fp+".json")
}

func (c *Cache) loadFromDisk(fp string) (Snapshot, bool) {
	raw, err := os.ReadFile(c.entryPath(fp))
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Printf("weather: discarding unreadable cache entry %s: %v", fp, err)
		return Snapshot{}, false
	}
	return snap, true
}

func (c *Cache) saveToDisk(fp string, snap Snapshot) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := c.entryPath(fp) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.entryPath(fp))
}

// Prune drops cache entries fetched more than maxAge ago, in memory and on
// disk. Historical weather does not change, but pruning keeps the cache dir
// from growing without bound. Returns the number of entries removed.
func (c *Cache) Prune(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0

	c.mu.Lock()
	for fp, snap := range c.mem {
		if snap.FetchedAt.Before(cutoff) {
			delete(c.mem, fp)
		}
	}
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return removed
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed
}
