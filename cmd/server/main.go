package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pricelens/backend/config"
	httpDelivery "github.com/pricelens/backend/internal/delivery/http"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/notify"
	"github.com/pricelens/backend/internal/infrastructure/sqlite"
	"github.com/pricelens/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting PriceLens Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Storage: %s", cfg.Storage.Path)

	// Initialize infrastructure dependencies
	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	memoryCache := cache.NewMemoryCache()

	debug := cfg.Matching.EnableDebugLog || cfg.Server.Environment == "development"

	queue := notify.NewQueue(cfg.Notify.QueueURL, cfg.Notify.Timeout)
	if client, ok := queue.(*notify.Client); ok {
		client.SetDebug(debug)
		log.Printf("Notification queue configured: %s", cfg.Notify.QueueURL)
	} else {
		log.Printf("WARNING: no notification queue configured - alert jobs will be dropped")
	}

	// Initialize usecase layer
	normalizer := usecase.NewNormalizer(debug)

	identityService := usecase.NewIdentityService(
		store,
		memoryCache,
		normalizer,
		usecase.IdentityConfig{
			FallbackThreshold:  cfg.Identity.FallbackThreshold,
			CacheTTL:           cfg.Identity.CacheTTL,
			EnableDebugLogging: debug,
		},
	)

	pricingService := usecase.NewPricingService(store, debug)

	alertService := usecase.NewAlertService(
		store,
		store,
		queue,
		usecase.AlertConfig{
			Cooldown:           cfg.Alerts.Cooldown,
			MonitoringHorizon:  cfg.Alerts.MonitoringHorizon,
			EnableDebugLogging: debug,
		},
	)

	ingestService := usecase.NewIngestService(
		identityService,
		pricingService,
		alertService,
		usecase.IngestConfig{
			IntraSourceRatio:   cfg.Matching.IntraSourceRatio,
			StrongThreshold:    cfg.Matching.StrongThreshold,
			ProbableThreshold:  cfg.Matching.ProbableThreshold,
			VolumeTolerance:    cfg.Matching.VolumeTolerance,
			BlockWorkers:       cfg.Matching.BlockWorkers,
			EnableDebugLogging: debug,
		},
	)

	log.Printf("Matching: strong=%.0f, intra=%.2f, tolerance=%.2f, workers=%d, debug=%v",
		cfg.Matching.StrongThreshold,
		cfg.Matching.IntraSourceRatio,
		cfg.Matching.VolumeTolerance,
		cfg.Matching.BlockWorkers,
		debug)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(ingestService, identityService, alertService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
