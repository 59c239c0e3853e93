// Package main is the entry point for the folio portfolio valuation service.
//
// Startup order: configuration, logging, dependency wiring, policy seed,
// scheduler, HTTP server. Shutdown runs in reverse: server, scheduler, database.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/internal/server"
	"github.com/aristath/folio/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().
		Str("version", version).
		Str("data_dir", cfg.DataDir).
		Str("base_currency", cfg.BaseCurrency).
		Msg("Starting folio")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	if cfg.PolicyFile != "" {
		seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		applied, err := container.AllocationService.SeedFromFile(seedCtx, cfg.PolicyFile)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("file", cfg.PolicyFile).Msg("Failed to seed policy")
		} else if applied {
			log.Info().Str("file", cfg.PolicyFile).Msg("Policy seeded from file")
		}
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:            log,
		Container:      container,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		AllowedOrigins: cfg.AllowedOrigins,
		DataDir:        cfg.DataDir,
		Version:        version,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown requested")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.Scheduler.Stop()

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}

	log.Info().Msg("Shutdown complete")
}
