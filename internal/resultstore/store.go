package resultstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/weather"
)

var (
	// ErrNotFound is returned when no usable persisted result exists for a
	// session id.
	ErrNotFound = errors.New("no persisted result for session")
)

// Metrics is the bit-exact on-disk metrics shape downstream consumers read.
type Metrics struct {
	PrecisionWatt     float64           `json:"precision_watt"`
	PrecisionWattCI   float64           `json:"precision_watt_ci"`
	DragWatt          float64           `json:"drag_watt"`
	RollingWatt       float64           `json:"rolling_watt"`
	GravityWatt       float64           `json:"gravity_watt"`
	TotalWatt         float64           `json:"total_watt"`
	AeroFraction      float64           `json:"aero_fraction"`
	CalibrationMae    *float64          `json:"calibration_mae"`
	Calibrated        bool              `json:"calibrated"`
	CalibrationStatus string            `json:"calibration_status"`
	WeatherUsed       bool              `json:"weather_used"`
	WeatherMeta       *weather.Snapshot `json:"weather_meta,omitempty"`
	WeatherFp         string            `json:"weather_fp,omitempty"`
	ProfileUsed       profile.Params    `json:"profile_used"`

	WattSeries             []float64 `json:"watt_series,omitempty"`
	RelWindMs              []float64 `json:"rel_wind_ms,omitempty"`
	EstimatedErrorPctRange []float64 `json:"estimated_error_pct_range,omitempty"`
	ConditionHint          string    `json:"condition_hint,omitempty"`
}

// PersistedResult is the on-disk analysis document. Exactly one current
// document exists per session id; saves replace, never append.
type PersistedResult struct {
	SessionID      string            `json:"session_id"`
	Metrics        Metrics           `json:"metrics"`
	ProfileVersion string            `json:"profile_version"`
	WeatherSource  string            `json:"weather_source"`
	Source         string            `json:"source"` // "cache" | "recomputed" | "fallback"
	SavedAt        time.Time         `json:"saved_at"`
	Debug          map[string]string `json:"debug,omitempty"`
}

// IsFull reports whether the document is a complete analysis rather than a
// placeholder or error dump. A document counts as full when it carries a
// non-empty predicted watt series, a positive scalar precision watt, or a
// non-empty relative-wind series. This predicate replaced an old
// file-size-threshold heuristic that misjudged short-but-valid rides.
func (r *PersistedResult) IsFull() bool {
	if len(r.Metrics.WattSeries) > 0 {
		return true
	}
	if r.Metrics.PrecisionWatt > 0 {
		return true
	}
	return len(r.Metrics.RelWindMs) > 0
}

// Store persists and retrieves analysis results as JSON files. The first dir
// is canonical; additional dirs are legacy locations that are still scanned
// on reads but never written.
type Store struct {
	dir        string
	legacyDirs []string
}

// NewStore creates a result store writing to dir and also reading from any
// legacyDirs.
func NewStore(dir string, legacyDirs ...string) *Store {
	return &Store{dir: dir, legacyDirs: legacyDirs}
}

var sidSanitizer = regexp.MustCompile(`[^0-9A-Za-z_-]+`)

// safeSessionID strips path-hostile characters so a session id can never
// escape the results directory.
func safeSessionID(sid string) string {
	return sidSanitizer.ReplaceAllString(sid, "")
}

func resultFilename(sid string) string {
	return "result_" + safeSessionID(sid) + ".json"
}

// Path returns the canonical location for a session's result document.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.dir, resultFilename(sessionID))
}

// Save writes the result atomically: the document goes to a temporary file in
// the destination directory and is renamed into place, so a concurrent reader
// sees either the old document or the new one, never a partial write.
func (s *Store) Save(sessionID string, result *PersistedResult) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	result.SessionID = safeSessionID(sessionID)
	result.SavedAt = time.Now().UTC()

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	dst := s.Path(sessionID)
	tmp, err := os.CreateTemp(s.dir, resultFilename(sessionID)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp result: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp result: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename result into place: %w", err)
	}
	return nil
}

type candidate struct {
	result    *PersistedResult
	canonical bool
	modTime   time.Time
	size      int64
}

// PickBest scans all known storage locations for a session id and returns the
// most complete candidate. Placeholder and error documents are rejected by
// the completeness predicate; among full candidates the canonical location
// wins, then the most recently written file, then the largest.
func (s *Store) PickBest(sessionID string) (*PersistedResult, error) {
	filename := resultFilename(sessionID)

	var candidates []candidate
	dirs := append([]string{s.dir}, s.legacyDirs...)
	for i, dir := range dirs {
		path := filepath.Join(dir, filename)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		res, err := readResult(path)
		if err != nil {
			log.Printf("resultstore: skipping unreadable candidate %s: %v", path, err)
			continue
		}
		if !res.IsFull() {
			continue
		}

		candidates = append(candidates, candidate{
			result:    res,
			canonical: i == 0,
			modTime:   info.ModTime(),
			size:      info.Size(),
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.canonical != cb.canonical {
			return ca.canonical
		}
		if !ca.modTime.Equal(cb.modTime) {
			return ca.modTime.After(cb.modTime)
		}
		return ca.size > cb.size
	})

	return candidates[0].result, nil
}

// IsStale reports whether a persisted result was computed under a different
// profile version than the current one.
func (s *Store) IsStale(result *PersistedResult, currentProfileVersion string) bool {
	return result.ProfileVersion != currentProfileVersion
}

func readResult(path string) (*PersistedResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var res PersistedResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveOrphanedTemp deletes *.tmp leftovers older than maxAge from the
// canonical dir. Crashed writers leave these behind; completed saves never
// do. Returns the number of files removed.
func (s *Store) RemoveOrphanedTemp(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed
}
