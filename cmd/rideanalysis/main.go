package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/veloforge/rideanalysis/internal/analysis"
	httpapi "github.com/veloforge/rideanalysis/internal/api/http"
	"github.com/veloforge/rideanalysis/internal/config"
	"github.com/veloforge/rideanalysis/internal/power"
	"github.com/veloforge/rideanalysis/internal/profile"
	"github.com/veloforge/rideanalysis/internal/resultstore"
	"github.com/veloforge/rideanalysis/internal/scheduler"
	"github.com/veloforge/rideanalysis/internal/weather"
	"github.com/veloforge/rideanalysis/internal/weather/providers"
)

func main() {
	// config.Load owns .env handling.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls (weather provider, power engine).
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Disk-backed stores.
	store := resultstore.NewStore(cfg.ResultsDir, cfg.LegacyResultDirs...)
	cache := weather.NewCache(providers.NewOpenMeteoArchive(httpClient), cfg.WeatherCacheDir, cfg.WeatherFetchTimeout)

	// Power model: probe the native engine once; the dispatcher degrades to
	// the internal physics model if the probe fails.
	var native *power.NativeModel
	if cfg.EngineURL != "" {
		native = power.NewNativeModel(httpClient, cfg.EngineURL)
	}
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	dispatcher := power.NewDispatcher(probeCtx, native, power.NewFallbackModel())
	cancelProbe()

	// Profile service; in this deployment the profile owner runs in-process.
	profiles := profile.NewStaticService(profile.Params{})

	orch := analysis.NewOrchestrator(store, cache, dispatcher, profiles)

	// Periodic maintenance: weather cache pruning + orphaned temp cleanup.
	maint := scheduler.New(cache, store, cfg.MaintenanceInterval, cfg.WeatherCacheMaxAge)
	if err := maint.Start(); err != nil {
		log.Fatalf("failed to start maintenance scheduler: %v", err)
	}
	defer maint.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "rideanalysis",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             cfg.MaxBodyMB * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "rideanalysis",
			"engine":  dispatcher.UsingNative(),
			"profile": profiles.CurrentVersion(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, orch)

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
