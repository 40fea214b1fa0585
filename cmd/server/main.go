// Package main is the entry point for the cal-sync booking calendar server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/cal-sync/backend/internal/api"
	"github.com/cal-sync/backend/internal/calendar"
	"github.com/cal-sync/backend/internal/config"
	"github.com/cal-sync/backend/internal/logging"
	"github.com/cal-sync/backend/internal/storage"
	"github.com/cal-sync/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Listen); err != nil {
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	logging.Init("cal-sync", cfg.LogLevel)
	log := logging.Logger
	log.WithField("version", version).Info("starting cal-sync")

	if err := calendar.ValidateSchedule(cfg.Sync.Schedule); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	// Initialize database
	db, err := storage.NewDB(filepath.Join(cfg.DataDir, "cal-sync.db"))
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := storage.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run(ctx)
	events := websocket.NewEventBroadcaster(hub)

	// Initialize repositories
	bookingRepo := storage.NewBookingRepository(db)
	syncStateRepo := storage.NewSyncStateRepository(db)

	// Initialize services
	syncService := calendar.NewSyncService(cfg.Feeds, calendar.NewFetcher(cfg.Sync.FetchTimeout), bookingRepo, syncStateRepo)
	syncService.SetBroadcaster(events)

	scheduler := calendar.NewScheduler(syncService, cfg.Sync.Schedule)
	if err := scheduler.Start(ctx); err != nil {
		log.WithError(err).Warn("failed to start feed sync scheduler")
	}

	log.WithField("apartments", cfg.Feeds.ApartmentIDs()).Info("feeds configured")

	router := api.NewRouter(api.Services{
		DB:               db,
		Feeds:            cfg.Feeds,
		Bookings:         bookingRepo,
		SyncStates:       syncStateRepo,
		Sync:             syncService,
		Publisher:        calendar.NewPublisher(bookingRepo),
		Overlaps:         calendar.NewOverlapDetector(bookingRepo),
		Scheduler:        scheduler,
		Hub:              hub,
		Events:           events,
		RefreshOnPublish: cfg.Sync.RefreshOnPublish,
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)

	// Create HTTP server. WriteTimeout leaves room for one full feed fetch.
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Sync.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.WithField("addr", cfg.Listen).Info("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}

	stop()
	scheduler.Stop()

	log.Info("server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parsing listen address %q: %w", addr, err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
