package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/efreitasn/nftmarket/internal/config"
	"github.com/efreitasn/nftmarket/internal/engine"
	"github.com/efreitasn/nftmarket/internal/handler"
	"github.com/efreitasn/nftmarket/internal/journal"
	"github.com/efreitasn/nftmarket/internal/registry"
	"github.com/efreitasn/nftmarket/internal/service"
	"github.com/efreitasn/nftmarket/internal/store"
	"github.com/efreitasn/nftmarket/internal/wallet"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before reading the environment")
	flag.Parse()

	// Variables already set in the environment win over the file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load env file", slog.String("path", *envFile), slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
		defer rotator.Close()
		out = rotator
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instantiate stores.
	listingStore := store.NewListingStore()
	proceedsLedger := store.NewProceedsLedger()
	notificationStore := store.NewNotificationStore()
	webhookStore := store.NewWebhookStore()

	// In-process collaborators standing in for the token contracts and
	// native currency.
	assetRegistry := registry.New()
	funds := wallet.New()

	// Engine.
	market := engine.NewMarketplace(cfg.MarketplaceAddress, listingStore, proceedsLedger, assetRegistry, funds)

	// Optional journal.
	var notifJournal service.Journal
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			logger.Error("failed to open journal", slog.String("path", cfg.JournalPath), slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer j.Close()
		notifJournal = j
	}

	// Services.
	webhookSvc := service.NewWebhookService(webhookStore, cfg.WebhookTimeout, logger)
	marketSvc := service.NewMarketplaceService(market, funds, notificationStore, notifJournal, webhookSvc, logger)
	assetSvc := service.NewAssetService(assetRegistry, funds, cfg.MarketplaceAddress)

	// Router.
	router := handler.NewRouter(marketSvc, assetSvc, webhookSvc, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("marketplace", cfg.MarketplaceAddress.Hex()),
			slog.Bool("journal", notifJournal != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
