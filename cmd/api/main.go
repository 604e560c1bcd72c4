package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"decode-server/internal/config"
	"decode-server/internal/logger"
	"decode-server/internal/server"

	"github.com/rs/zerolog/log"
)

func gracefulShutdown(customServer *server.Server, httpServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutdown signal received, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close client sockets first so their rooms are torn down cleanly.
	if err := customServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during custom shutdown")
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := server.OpenStatsStore(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StatsBackend).Msg("Failed to open stats store")
	}

	customServer, httpServer := server.NewServer(cfg, store)

	done := make(chan bool, 1)
	go gracefulShutdown(customServer, httpServer, done)

	log.Info().Str("addr", httpServer.Addr).Str("stats", cfg.StatsBackend).Msg("Server listening")
	err = httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
