package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/veloforge/rideanalysis/internal/resultstore"
	"github.com/veloforge/rideanalysis/internal/weather"
)

// Maintenance periodically sweeps disk-backed state: old weather cache
// entries and orphaned temp files left by crashed result writers.
type Maintenance struct {
	scheduler *gocron.Scheduler
	cache     *weather.Cache
	store     *resultstore.Store

	interval      time.Duration
	weatherMaxAge time.Duration
}

// New creates the maintenance job runner.
func New(cache *weather.Cache, store *resultstore.Store, interval, weatherMaxAge time.Duration) *Maintenance {
	s := gocron.NewScheduler(time.UTC)
	return &Maintenance{
		scheduler:     s,
		cache:         cache,
		store:         store,
		interval:      interval,
		weatherMaxAge: weatherMaxAge,
	}
}

// Start schedules the periodic sweep and starts the underlying scheduler.
func (m *Maintenance) Start() error {
	minutes := int(m.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := m.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("maintenance: running sweep")

		if m.cache != nil {
			if n := m.cache.Prune(m.weatherMaxAge); n > 0 {
				log.Printf("maintenance: pruned %d weather cache entries", n)
			}
		}

		// Temp files older than an hour can only be crash leftovers; a live
		// save renames within milliseconds.
		if n := m.store.RemoveOrphanedTemp(time.Hour); n > 0 {
			log.Printf("maintenance: removed %d orphaned temp files", n)
		}

		log.Println("maintenance: sweep completed")
	})
	if err != nil {
		return err
	}

	m.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (m *Maintenance) Stop() {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
}
