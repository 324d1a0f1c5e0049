package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/summitlab/crux/internal/aiclient"
	"github.com/summitlab/crux/internal/api"
	"github.com/summitlab/crux/internal/bus"
	"github.com/summitlab/crux/internal/config"
	"github.com/summitlab/crux/internal/consensus"
	"github.com/summitlab/crux/internal/engine"
	"github.com/summitlab/crux/internal/research"
	"github.com/summitlab/crux/internal/scenariogen"
	"github.com/summitlab/crux/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("crux starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// AI backend client
	ai := aiclient.NewClient(cfg.AIBaseURL, cfg.AIAPIKey)
	slog.Info("ai client ready", "url", cfg.AIBaseURL)

	// NATS
	busClient, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Domain services
	trigger := consensus.NewTrigger(busClient, slog.Default())
	eng := engine.New(db, trigger, slog.Default())
	researcher := research.NewService(ai, db, slog.Default())
	generator := scenariogen.New(ai, db, busClient, slog.Default())

	// Fold consensus outcomes back into scenario status
	results := consensus.NewResultHandler(db, slog.Default())
	if err := busClient.Subscribe(bus.SubjectConsensusResult, results.HandleResult); err != nil {
		slog.Error("failed to subscribe to consensus results", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Engine:     eng,
		Scenarios:  db,
		Rules:      db,
		Researcher: researcher,
		Generator:  generator,
		Logger:     slog.Default(),
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := busClient.Publish(bus.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("crux ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("crux stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
