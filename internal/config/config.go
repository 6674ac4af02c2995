package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken          string
	DatabaseURL            string
	RedisURL               string
	SuppliesAPIURL         string
	PollInterval           time.Duration
	PollConcurrency        int
	CheckTimeout           time.Duration
	CatalogRefreshInterval time.Duration
	SessionTTL             time.Duration
	APIRatePerSec          int
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:          strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:               strings.TrimSpace(os.Getenv("REDIS_URL")),
		SuppliesAPIURL:         strings.TrimSpace(os.Getenv("SUPPLIES_API_URL")),
		PollInterval:           parseSeconds(os.Getenv("POLL_INTERVAL_SECONDS"), 60*time.Second),
		PollConcurrency:        parseInt(os.Getenv("POLL_CONCURRENCY"), 4),
		CheckTimeout:           parseSeconds(os.Getenv("CHECK_TIMEOUT_SECONDS"), 30*time.Second),
		CatalogRefreshInterval: parseHours(os.Getenv("CATALOG_REFRESH_HOURS"), 6*time.Hour),
		SessionTTL:             parseMinutes(os.Getenv("SESSION_TTL_MINUTES"), 30*time.Minute),
		APIRatePerSec:          parseInt(os.Getenv("API_RATE_PER_SEC"), 3),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "supplies_radar.db"
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseSeconds(raw string, fallback time.Duration) time.Duration {
	if value := parseInt(raw, 0); value > 0 {
		return time.Duration(value) * time.Second
	}
	return fallback
}

func parseMinutes(raw string, fallback time.Duration) time.Duration {
	if value := parseInt(raw, 0); value > 0 {
		return time.Duration(value) * time.Minute
	}
	return fallback
}

func parseHours(raw string, fallback time.Duration) time.Duration {
	if value := parseInt(raw, 0); value > 0 {
		return time.Duration(value) * time.Hour
	}
	return fallback
}
