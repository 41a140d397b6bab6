package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	MarketCapMin    float64 `env:"MARKET_CAP_MIN" envDefault:"500000000"`
	MarketCapMax    float64 `env:"MARKET_CAP_MAX" envDefault:"10000000000"`
	MinVolume       int64   `env:"MIN_VOLUME" envDefault:"100000"`
	FinnhubAPIToken string  `env:"FINNHUB_API_TOKEN" envDefault:""`
	CacheDir        string  `env:"CACHE_DIR" envDefault:"data/cache"`
	SymbolsFile     string  `env:"SYMBOLS_FILE" envDefault:"tickers.csv"`
	LogLevel        string  `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout  int     `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RateLimitPerMin int     `env:"RATE_LIMIT_PER_MIN" envDefault:"10"`
	DatabaseURL     string  `env:"DATABASE_URL" envDefault:""`
	TelegramToken   string  `env:"TELEGRAM_BOT_TOKEN" envDefault:""`
	TelegramChatID  int64   `env:"TELEGRAM_CHAT_ID" envDefault:"0"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.MarketCapMin = getEnvFloatWithDefault("MARKET_CAP_MIN", 500_000_000)
	cfg.MarketCapMax = getEnvFloatWithDefault("MARKET_CAP_MAX", 10_000_000_000)
	cfg.MinVolume = getEnvInt64WithDefault("MIN_VOLUME", 100_000)
	cfg.FinnhubAPIToken = os.Getenv("FINNHUB_API_TOKEN")
	cfg.CacheDir = getEnvWithDefault("CACHE_DIR", "data/cache")
	cfg.SymbolsFile = getEnvWithDefault("SYMBOLS_FILE", "tickers.csv")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RateLimitPerMin = getEnvIntWithDefault("RATE_LIMIT_PER_MIN", 10)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0)

	return &cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
