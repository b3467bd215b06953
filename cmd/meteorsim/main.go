// meteorsim serves impact-scenario playback: it ingests trajectory payloads
// from the physics service and streams synchronized asteroid/Earth frames to
// rendering clients.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/api"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/config"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/engine"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/metrics"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/scenario"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/stream"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "meteorsim",
		Short: "Trajectory playback service for impact-scenario visualization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath, logger)
	if err != nil {
		logger.Error("configuration error", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := scenario.NewStore()

	eng, err := engine.New(engine.Config{
		ScaleFactor:     cfg.Engine.ScaleFactor,
		MetersThreshold: cfg.Engine.MetersThreshold,
		OrbitPathPoints: cfg.Engine.OrbitPathPoints,
		DurationMs:      cfg.Engine.DurationMs,
		IdleRate:        cfg.Engine.IdleRate,
	}, store, logger)
	if err != nil {
		logger.Error("engine init failed", "error", err)
		return err
	}

	if cfg.SourceURL != "" {
		if err := loadInitialScenario(ctx, cfg.SourceURL, eng, store, logger); err != nil {
			// Startup proceeds without a scenario; the idle animation serves
			// until the first POST /api/v1/scenario.
			logger.Warn("initial scenario fetch failed, starting idle", "url", cfg.SourceURL, "error", err)
		}
	}

	go scenarioAgeLoop(ctx, store)

	streams := stream.NewHandler(eng, stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		KeepaliveInterval:  time.Duration(cfg.Stream.KeepaliveSeconds) * time.Second,
		MaxFPS:             cfg.Stream.MaxFPS,
		TrustProxy:         cfg.Stream.TrustProxy,
	}, logger)

	server := api.NewServer(api.Config{
		Addr:      cfg.HTTPAddr,
		AuthToken: cfg.AuthToken,
	}, eng, store, streams, logger)

	httpServer := server.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// loadInitialScenario performs a one-shot fetch from the physics service at
// startup.
func loadInitialScenario(ctx context.Context, url string, eng *engine.Engine, store *scenario.Store, logger *slog.Logger) error {
	store.Lock()
	defer store.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	body, err := scenario.NewFetcher(url).Fetch(fetchCtx)
	if err != nil {
		metrics.IncScenarioLoads("fetch_error")
		return err
	}

	sc, err := scenario.Parse(bytes.NewReader(body), logger)
	if err != nil {
		metrics.IncScenarioLoads("parse_error")
		return fmt.Errorf("parsing fetched scenario: %w", err)
	}
	sc.Source = url

	if _, err := eng.Load(sc); err != nil {
		metrics.IncScenarioLoads("load_error")
		return err
	}
	metrics.IncScenarioLoads("success")
	return nil
}

// scenarioAgeLoop refreshes the scenario age gauge.
func scenarioAgeLoop(ctx context.Context, store *scenario.Store) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if age := store.AgeSeconds(); age >= 0 {
				metrics.SetScenarioAge(age)
			}
		}
	}
}
