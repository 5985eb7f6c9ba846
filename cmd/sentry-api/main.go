package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NetSentry/internal/api"
	"NetSentry/internal/archive"
	"NetSentry/internal/config"
	"NetSentry/internal/engine"
	"NetSentry/internal/ingest"
	"NetSentry/internal/model"
	"NetSentry/internal/notification"
	"NetSentry/internal/scoring"
	"NetSentry/internal/storage/postgres"
	"NetSentry/internal/threshold"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Authoritative store. Observations and alerts live here; nothing starts
	// without it.
	store, err := postgres.NewStore(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer store.Close()

	// Detection threshold, optionally durable across restarts via Redis.
	thresholds := threshold.NewStore(cfg.Scoring.DefaultThreshold)
	if cfg.Redis.Enabled {
		snap, err := threshold.NewRedisSnapshotter(threshold.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer snap.Close()
		thresholds.WithSnapshotter(ctx, snap)
	}

	scorer, err := buildScorer(cfg.Scoring)
	if err != nil {
		log.Fatalf("Failed to build scoring backend: %v", err)
	}

	opts := []engine.Option{}

	// Best-effort analytics mirror. Never part of the transactional unit.
	if cfg.ClickHouse.Enabled {
		writer, err := archive.NewWriter(cfg.ClickHouse.Config)
		if err != nil {
			log.Fatalf("Failed to start ClickHouse archive writer: %v", err)
		}
		defer writer.Stop()
		opts = append(opts, engine.WithArchiver(writer))
	}

	if cfg.SMTP.Host != "" {
		notifyMin := model.ThreatLevelHigh
		if cfg.Alerting.NotifyMinLevel != "" {
			level, err := model.ParseThreatLevel(cfg.Alerting.NotifyMinLevel)
			if err != nil {
				log.Fatalf("Invalid notify_min_level: %v", err)
			}
			notifyMin = level
		}
		opts = append(opts, engine.WithNotifier(notification.NewEmailNotifier(cfg.SMTP), notifyMin))
		log.Printf("Alert notifications enabled for %s and above", notifyMin)
	}

	eng := engine.New(store, scorer, thresholds, opts...)
	stats := engine.NewStatsAggregator(store)

	// Probe ingest: observations published by sentry-probe flow through the
	// same pipeline as API submissions.
	if cfg.NATS.Enabled {
		sub, err := ingest.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer sub.Close()

		handler := func(obs model.TrafficObservation) {
			if _, err := eng.ProcessObservation(context.Background(), &obs, cfg.NATS.Analyst); err != nil {
				log.Printf("Error processing probe observation from %s: %v", obs.SourceIP, err)
			}
		}
		if err := sub.Start(cfg.NATS.Subject, handler); err != nil {
			log.Fatalf("Failed to subscribe to %s: %v", cfg.NATS.Subject, err)
		}
	}

	server := api.NewServer(eng, stats, cfg.Server)
	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("NetSentry API server starting on %s", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Server exited.")
}

func buildScorer(cfg config.ScoringConfig) (*scoring.Adapter, error) {
	timeout := 5 * time.Second
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, err
		}
		timeout = parsed
	}

	var backend model.Scorer
	switch cfg.Backend {
	case "remote":
		remote, err := scoring.NewRemoteScorer(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		backend = remote
		log.Printf("Using remote scoring backend at %s", cfg.Endpoint)
	default:
		backend = scoring.NewHeuristicScorer()
		log.Println("Using heuristic scoring backend")
	}
	return scoring.NewAdapter(backend, timeout), nil
}
