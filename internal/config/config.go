package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the companion server.
type Config struct {
	ListenAddr    string
	BaseURL       string
	DatabaseURL   string
	CacheDir      string
	ShareSecret   string
	ShareTTL      time.Duration
	DrainInterval time.Duration
	AccessTokens  map[string]string
}

// Load reads configuration from environment variables with sane defaults.
// SHARE_SECRET is the only required variable; the signing key must never be
// compiled into the binary.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    strings.TrimSpace(os.Getenv("LISTEN_ADDR")),
		BaseURL:       strings.TrimSpace(os.Getenv("BASE_URL")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CacheDir:      strings.TrimSpace(os.Getenv("CACHE_DIR")),
		ShareSecret:   strings.TrimSpace(os.Getenv("SHARE_SECRET")),
		ShareTTL:      parseDays(strings.TrimSpace(os.Getenv("SHARE_TTL_DAYS"))),
		DrainInterval: parseMinutes(strings.TrimSpace(os.Getenv("DRAIN_INTERVAL_MINUTES"))),
		AccessTokens:  parseTokenPairs(strings.TrimSpace(os.Getenv("ACCESS_TOKENS"))),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "companion.db"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "cache"
	}
	if cfg.ShareTTL == 0 {
		cfg.ShareTTL = 30 * 24 * time.Hour
	}
	if cfg.DrainInterval == 0 {
		cfg.DrainInterval = 5 * time.Minute
	}

	if cfg.ShareSecret == "" {
		return cfg, fmt.Errorf("SHARE_SECRET is required")
	}

	return cfg, nil
}

func parseDays(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}

func parseMinutes(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

// parseTokenPairs decodes "token=owner,token=owner" into a lookup map.
func parseTokenPairs(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	pairs := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		token, owner, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || token == "" || owner == "" {
			continue
		}
		pairs[token] = owner
	}
	if len(pairs) == 0 {
		return nil
	}
	return pairs
}
