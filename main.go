package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dexwatch/internal/activitylog"
	"dexwatch/internal/api"
	"dexwatch/internal/config"
	"dexwatch/internal/db"
	"dexwatch/internal/discord"
	"dexwatch/internal/logging"
	"dexwatch/internal/market"
	"dexwatch/internal/processor"
	"dexwatch/internal/redis"
	"dexwatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service", "service", "dexwatch", "http_addr", cfg.HTTPAddr)

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

	archiver := storage.NewLogoArchiver(logger, dbConn, newLogoStorage(cfg, logger))
	if err := archiver.InitSchema(ctx); err != nil {
		logger.Error("logo_schema_failed", "error", err)
		os.Exit(1)
	}
	archiver.Start()

	dex := market.NewDexScreenerClient(logger)
	cmc := market.NewCMCClient(cfg.MarketAPIKey, logger)
	markets := market.NewService(dex, cmc, logger)

	rest := discord.NewRestClient(cfg.BotToken, logger)

	var manager *discord.Manager
	botUserID := func() string {
		if manager == nil {
			return ""
		}
		return manager.BotUserID()
	}

	msgProcessor := processor.NewMessageProcessor(logger, redisClient, markets, rest, activity, archiver, botUserID)
	msgProcessor.StartWorkers(cfg.EventWorkerCount)

	if cfg.BotToken != "" {
		manager = discord.NewManager(cfg.BotToken, msgProcessor, logger)
		if err := manager.Start(ctx); err != nil {
			logger.Error("gateway_start_failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("bot_token_not_configured", "msg", "gateway disabled, API only")
	}

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

	logger.Info("api_server_ready", "addr", cfg.HTTPAddr)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if manager != nil {
		manager.Stop()
		logger.Info("gateway_connection_closed")
	}

	archiver.Stop()
	msgProcessor.StopWorkers()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_error", "error", err)
	}

	logger.Info("shutdown_complete")
}

// newLogoStorage picks the real S3/R2 client when an endpoint and bucket
// are configured, otherwise the local simulator so the rest of the service
// keeps working without credentials.
func newLogoStorage(cfg config.Config, logger *slog.Logger) storage.LogoStorage {
	if cfg.LogoEndpoint == "" || cfg.LogoBucket == "" {
		logger.Info("logo_storage_simulated")
		return storage.NewR2Simulator(cfg.LogoBucket, cfg.LogoEndpoint)
	}

	var keys struct {
		PublicURL string `json:"public_url"`
	}
	if cfg.LogoKeysRaw != "" {
		if err := json.Unmarshal([]byte(cfg.LogoKeysRaw), &keys); err != nil {
			logger.Warn("logo_keys_parse_failed", "error", err)
		}
	}

	client, err := storage.NewS3Client(storage.S3Config{
		Endpoint:  cfg.LogoEndpoint,
		Bucket:    cfg.LogoBucket,
		PublicURL: keys.PublicURL,
		Region:    "auto",
	})
	if err != nil {
		logger.Warn("logo_storage_init_failed", "error", err)
		return storage.NewR2Simulator(cfg.LogoBucket, cfg.LogoEndpoint)
	}

	logger.Info("logo_storage_ready", "bucket", cfg.LogoBucket)
	return client
}
