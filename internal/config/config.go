package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// PriceFallbackPolicy controls what the price helper does when a symbol's
// USD price cannot be resolved at all (no live value, no stale cache).
type PriceFallbackPolicy string

const (
	// PriceFallbackOne assumes $1.00 and logs the degradation.
	PriceFallbackOne PriceFallbackPolicy = "one"
	// PriceFallbackFail surfaces an error instead of guessing.
	PriceFallbackFail PriceFallbackPolicy = "fail"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	AdminAPIKey string

	TelegramBotToken string

	// Credential sealing key, 32 bytes hex-encoded.
	CredentialKeyHex string

	AggregatePollSecs   int
	AggregateCacheSecs  int
	HistoricalCacheSecs int
	PriceCacheSecs      int
	BackfillWindowDays  int

	PriceFallback PolicyOrDefault

	ParadexChainID string
}

// PolicyOrDefault wraps PriceFallbackPolicy so the zero value reads as the
// default policy.
type PolicyOrDefault struct {
	policy PriceFallbackPolicy
}

func (p PolicyOrDefault) Value() PriceFallbackPolicy {
	if p.policy == "" {
		return PriceFallbackOne
	}
	return p.policy
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		AdminAPIKey:      os.Getenv("ADMIN_API_KEY"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		CredentialKeyHex: os.Getenv("CREDENTIAL_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, historical persistence disabled")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, using in-process cache")
	}
	if cfg.AdminAPIKey == "" {
		log.Println("Warning: ADMIN_API_KEY not set, admin routes are unauthenticated")
	}
	if cfg.CredentialKeyHex == "" {
		log.Println("Warning: CREDENTIAL_KEY not set, stored credentials unavailable")
	}

	cfg.AggregatePollSecs = envInt("AGGREGATE_POLL_SECS", 300)
	cfg.AggregateCacheSecs = envInt("AGGREGATE_CACHE_SECS", 300)
	cfg.HistoricalCacheSecs = envInt("HISTORICAL_CACHE_SECS", 3600)
	cfg.PriceCacheSecs = envInt("PRICE_CACHE_SECS", 300)
	cfg.BackfillWindowDays = envInt("BACKFILL_WINDOW_DAYS", 30)

	switch strings.ToLower(strings.TrimSpace(os.Getenv("PRICE_FALLBACK_POLICY"))) {
	case "", string(PriceFallbackOne):
		cfg.PriceFallback = PolicyOrDefault{policy: PriceFallbackOne}
	case string(PriceFallbackFail):
		cfg.PriceFallback = PolicyOrDefault{policy: PriceFallbackFail}
	default:
		log.Printf("Warning: unsupported PRICE_FALLBACK_POLICY=%q, defaulting to %q",
			os.Getenv("PRICE_FALLBACK_POLICY"), PriceFallbackOne)
		cfg.PriceFallback = PolicyOrDefault{policy: PriceFallbackOne}
	}

	cfg.ParadexChainID = strings.TrimSpace(os.Getenv("PARADEX_CHAIN_ID"))
	if cfg.ParadexChainID == "" {
		cfg.ParadexChainID = "PRIVATE_SN_PARACLEAR_MAINNET"
	}

	return cfg
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, defaulting to %d", key, v, fallback)
	}
	return fallback
}
