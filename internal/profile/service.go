package profile

import (
	"sync"
	"time"
)

// Service is the contract the profile owner must satisfy. The analysis core
// only ever reads the current parameters (the version rides along inside
// them); profile CRUD lives elsewhere.
type Service interface {
	Current() Params
}

// StaticService is a concurrency-safe in-process Service backed by a single
// parameter set. It is the wiring used when the profile owner runs in the
// same process; tests swap parameter sets to exercise version invalidation.
type StaticService struct {
	mu     sync.RWMutex
	params Params
}

// NewStaticService normalizes and holds the given parameters.
func NewStaticService(p Params) *StaticService {
	return &StaticService{params: Normalize(p, time.Now())}
}

func (s *StaticService) Current() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// CurrentVersion returns just the active profile version, for health and
// status reporting.
func (s *StaticService) CurrentVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.ProfileVersion
}

// Update replaces the parameter set. The version is recomputed from the new
// physical parameters, which invalidates persisted results that used the old
// set.
func (s *StaticService) Update(p Params) Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ProfileVersion = ""
	s.params = Normalize(p, time.Now())
	return s.params
}
