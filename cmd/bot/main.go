package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dexwatch/internal/activitylog"
	"dexwatch/internal/config"
	"dexwatch/internal/db"
	"dexwatch/internal/discord"
	"dexwatch/internal/logging"
	"dexwatch/internal/market"
	"dexwatch/internal/processor"
	"dexwatch/internal/redis"
	"dexwatch/internal/storage"
)

// Gateway-only binary: connects the bot, answers messages, and archives
// logos, without serving the HTTP API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_bot", "service", "dexwatch-bot")

	if cfg.BotToken == "" {
		logger.Error("bot_token_not_configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL (with retry)
	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
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

	manager = discord.NewManager(cfg.BotToken, msgProcessor, logger)
	if err := manager.Start(ctx); err != nil {
		logger.Error("gateway_start_failed", "error", err)
		os.Exit(1)
	}

	logger.Info("bot_ready")

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	manager.Stop()
	archiver.Stop()
	msgProcessor.StopWorkers()
	logger.Info("shutdown_complete")
}

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
