package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DBDSN    string
	RedisDSN string
	HTTPAddr string
	LogLevel string

	// raw secrets kept in-memory only; never log these
	BotToken       string // Discord bot token (gateway + REST)
	MarketAPIKey   string // CoinMarketCap pro API key
	AdminSecretKey string
	CORSOrigins    []string

	EventWorkerCount int

	// logo archive (S3/R2); simulator is used when endpoint/bucket are empty
	LogoEndpoint string
	LogoBucket   string
	LogoKeysRaw  string // json: access_key_id, secret_access_key, public_url
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:          os.Getenv("DB_DSN"),
		RedisDSN:       getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		BotToken:       os.Getenv("DISCORD_BOT_TOKEN"),
		MarketAPIKey:   os.Getenv("COINMARKETCAP_API_KEY"),
		AdminSecretKey: getenvDefault("ADMIN_SECRET_KEY", ""),
		LogoEndpoint:   getenvDefault("LOGO_ENDPOINT", ""),
		LogoBucket:     getenvDefault("LOGO_BUCKET", ""),
		LogoKeysRaw:    os.Getenv("LOGO_KEYS"),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	// light validation: ensure secrets are valid json if set
	if cfg.LogoKeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.LogoKeysRaw), &tmp); err != nil {
			return Config{}, errors.New("LOGO_KEYS must be valid json")
		}
	}

	cfg.EventWorkerCount = 5
	if raw := os.Getenv("EVENT_WORKER_COUNT"); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 {
			return Config{}, errors.New("EVENT_WORKER_COUNT must be a positive integer")
		}
		cfg.EventWorkerCount = n
	}

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
