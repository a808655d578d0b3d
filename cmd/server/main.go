package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/better-wallet/smart-account/internal/api"
	"github.com/better-wallet/smart-account/internal/app"
	"github.com/better-wallet/smart-account/internal/config"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/internal/metrics"
	"github.com/better-wallet/smart-account/internal/storage"
)

func main() {
	envFile := flag.String("env", "", "Path to a .env file (default: ./.env if present)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Receipts go to Postgres when configured, memory otherwise
	var receipts storage.ReceiptStore
	if cfg.PostgresDSN != "" {
		store, err := storage.New(ctx, cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		receipts = store.Receipts()
		slog.Info("connected to database")
	} else {
		receipts = storage.NewMemoryReceiptStore()
		slog.Warn("POSTGRES_DSN not set, receipts are kept in memory")
	}

	m := metrics.New()

	accounts, err := app.NewAccountService(ctx, app.Options{
		ChainID:                    cfg.ChainID,
		RecoveryDomainName:         cfg.RecoveryDomainName,
		RecoveryDomainVersion:      cfg.RecoveryDomainVersion,
		CloudRecoveryTimelock:      cfg.CloudRecoveryTimelock,
		SocialRecoveryMinTimelock:  cfg.SocialRecoveryMinTimelock,
		SocialRecoveryMinThreshold: cfg.SocialRecoveryMinThreshold,
	}, receipts, m)
	if err != nil {
		slog.Error("failed to initialize account service", "error", err)
		os.Exit(1)
	}

	// Initialize API server
	server := api.NewServer(ctx, cfg, accounts, m)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Wait for either server error or shutdown signal
	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}

		slog.Info("server stopped")
	}
}
