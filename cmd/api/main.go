package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dexwatch/internal/activitylog"
	"dexwatch/internal/api"
	"dexwatch/internal/config"
	"dexwatch/internal/db"
	"dexwatch/internal/logging"
	"dexwatch/internal/market"
	"dexwatch/internal/redis"
	"dexwatch/internal/storage"
)

// API-only binary: serves the lookup and report endpoints without a
// gateway connection. Logo uploads still run for admin retry requests.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api", "service", "dexwatch-api", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	activity := activitylog.NewStore(dbConn, logger)
	if err := activity.InitSchema(ctx); err != nil {
		logger.Error("activity_schema_failed", "error", err)
		os.Exit(1)
	}

	// Simulator is fine here; the gateway binary owns real uploads.
	archiver := storage.NewLogoArchiver(logger, dbConn, storage.NewR2Simulator(cfg.LogoBucket, cfg.LogoEndpoint))
	if err := archiver.InitSchema(ctx); err != nil {
		logger.Error("logo_schema_failed", "error", err)
		os.Exit(1)
	}

	dex := market.NewDexScreenerClient(logger)
	cmc := market.NewCMCClient(cfg.MarketAPIKey, logger)
	markets := market.NewService(dex, cmc, logger)

	srv := api.NewServer(logger, dbConn, redisClient, cfg, markets, activity, archiver)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	logger.Info("api_stopped")
}
