package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ServerPort       string
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string

	CoinGeckoBaseURL string
	CoinGeckoAPIKey  string
	BinanceBaseURL   string

	PrimaryTimeoutSecs  int
	HeavyTimeoutSecs    int
	FallbackTimeoutSecs int
	CacheStalenessSecs  int
	CacheTTLSecs        int

	AlertPollSecs        int
	DefaultMinConfidence int

	OpenAIAPIKey string
	OpenAIModel  string
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CoinGeckoAPIKey:  os.Getenv("COINGECKO_API_KEY"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("SERVER_PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.CoinGeckoBaseURL = strings.TrimSpace(os.Getenv("COINGECKO_BASE_URL"))
	if cfg.CoinGeckoBaseURL == "" {
		cfg.CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	}

	cfg.BinanceBaseURL = strings.TrimSpace(os.Getenv("BINANCE_BASE_URL"))
	if cfg.BinanceBaseURL == "" {
		cfg.BinanceBaseURL = "https://api.binance.com"
	}

	cfg.PrimaryTimeoutSecs = envInt("PRIMARY_TIMEOUT_SECS", 8)
	cfg.HeavyTimeoutSecs = envInt("HEAVY_TIMEOUT_SECS", 10)
	cfg.FallbackTimeoutSecs = envInt("FALLBACK_TIMEOUT_SECS", 5)
	cfg.CacheStalenessSecs = envInt("CACHE_STALENESS_SECS", 300)
	cfg.CacheTTLSecs = envInt("CACHE_TTL_SECS", 1800)
	cfg.AlertPollSecs = envInt("ALERT_POLL_SECS", 60)

	cfg.DefaultMinConfidence = envInt("DEFAULT_MIN_CONFIDENCE", 50)
	if cfg.DefaultMinConfidence > 100 {
		log.Printf("Warning: DEFAULT_MIN_CONFIDENCE=%d out of range, defaulting to 50", cfg.DefaultMinConfidence)
		cfg.DefaultMinConfidence = 50
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, advisor will be disabled")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	return cfg
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, defaulting to %d", key, v, fallback)
		return fallback
	}
	return n
}
