package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hq-entitlements/internal/config"
	"hq-entitlements/internal/handler"
	"hq-entitlements/internal/router"
	"hq-entitlements/internal/service"
	"hq-entitlements/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().
		Str("store_backend", cfg.Store.Backend).
		Msg("starting hq-entitlements API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orderStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open order store: %w", err)
	}
	defer func() {
		if err := orderStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close order store")
		}
	}()

	entitlements := service.NewEntitlementService(
		orderStore,
		store.OpenEventLog(cfg),
		service.Options{DownloadBasePath: cfg.Download.BasePath},
		logger,
	)

	// Hydrate eagerly so a broken store shows up in the startup logs
	// rather than on the first buyer request.
	orders, err := entitlements.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	logger.Info().
		Int("orders", len(orders)).
		Bool("degraded", entitlements.PersistenceStatus().Degraded).
		Msg("order cache ready")

	mux := router.New(
		handler.NewCheckoutHandler(entitlements, logger),
		handler.NewDownloadHandler(entitlements, logger),
		handler.NewAdminHandler(entitlements, logger),
		cfg.Auth.APIKey,
		logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		status := entitlements.PersistenceStatus()
		if status.Degraded {
			logger.Warn().
				Int64("failures", status.Failures).
				Str("last_error", status.LastError).
				Msg("shutting down with unpersisted changes, durable history may be incomplete")
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
