package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"safeguard-backend/config"
	"safeguard-backend/internal/api"
	"safeguard-backend/internal/channel"
	"safeguard-backend/internal/db"
	"safeguard-backend/internal/dispatch"
	"safeguard-backend/internal/geofence"
	"safeguard-backend/internal/logging"
	"safeguard-backend/internal/notification"
	"safeguard-backend/internal/store"
	"safeguard-backend/internal/tracker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatal("VAPID keys must be configured; generate them and add them to the config file")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	// Hydrate the engine from the durable boundary set.
	engine := geofence.New()
	boundaries, err := appStore.LoadBoundaries(ctx)
	if err != nil {
		logger.Fatal("failed to load boundaries", zap.Error(err))
	}
	for _, rec := range boundaries {
		domain, err := geofence.FromRecord(rec)
		if err != nil {
			logger.Warn("skipping invalid stored boundary",
				zap.String("id", rec.ID),
				zap.Error(err))
			continue
		}
		if err := engine.UpsertBoundary(domain); err != nil {
			logger.Warn("skipping rejected boundary", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	logger.Info("geofence engine hydrated", zap.Int("boundaries", engine.BoundaryCount()))

	primary := channel.NewBulkSMS(cfg.Channels.Primary)
	fallback := channel.NewTwilioSMS(cfg.Channels.Fallback)
	dispatcher := dispatch.New(primary, fallback, cfg.Channels.SendTimeout, logger)

	pushPool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions, logger)
	pushPool.Start(ctx)

	tr := tracker.New(appStore, engine, dispatcher, pushPool, cfg.Tracker.HistoryKeep, logger)

	handler := api.NewHandler(appStore, engine, tr, dispatcher, &webpushOptions, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		Burst:           5,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		RequestIPHeader: cfg.Server.RequestIPHeader,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
