// Package config builds the process configuration once from the
// environment. Missing API keys downgrade features, never crash; only
// nonsensical values (non-positive capital, zero intervals) are rejected.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment is silent.
const (
	DefaultTotalCapitalUSD  = 10_000.0
	DefaultTrackingInterval = 60 * time.Second
	DefaultManageInterval   = 120 * time.Second
	DefaultMetricsInterval  = 15 * time.Minute
	DefaultDiscoverInterval = 6 * time.Hour
	DefaultStatusInterval   = time.Minute
	DefaultPort             = 8080
	DefaultRateLimitWindow  = 15 * time.Minute
	DefaultRateLimitMax     = 100
	DefaultSolanaRPC        = "https://api.mainnet-beta.solana.com"
)

// Config is the process configuration, constructed once and passed down.
type Config struct {
	// Capital.
	TotalCapitalUSD float64

	// Job cadence.
	TrackingInterval time.Duration
	ManageInterval   time.Duration
	MetricsInterval  time.Duration
	DiscoverInterval time.Duration
	StatusInterval   time.Duration

	// Provider credentials. Empty disables the feature.
	EVMExplorerKey   string
	CoinGeckoKey     string
	CoinMarketCapKey string
	SolanaRPCKey     string
	DexProviderKey   string

	// Boundary API.
	Port            int
	APIKey          string
	CORSOrigin      string
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Storage. Empty DatabaseURL selects the in-memory backend.
	DatabaseURL string

	// Behavior toggles.
	MockMode          bool
	LogLevel          string
	EnabledStrategies []string
	EVMChains         []string
}

// Load reads the environment (with an optional .env file, real env wins)
// and validates the result.
func Load() (*Config, error) {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	cfg := &Config{
		TotalCapitalUSD:  envFloat("TOTAL_CAPITAL", DefaultTotalCapitalUSD),
		TrackingInterval: envSeconds("TRACKING_INTERVAL_SEC", DefaultTrackingInterval),
		ManageInterval:   envSeconds("MANAGE_INTERVAL_SEC", DefaultManageInterval),
		MetricsInterval:  DefaultMetricsInterval,
		DiscoverInterval: envHours("DISCOVER_INTERVAL_HOURS", DefaultDiscoverInterval),
		StatusInterval:   DefaultStatusInterval,

		EVMExplorerKey:   os.Getenv("EVM_EXPLORER_KEY"),
		CoinGeckoKey:     os.Getenv("COINGECKO_KEY"),
		CoinMarketCapKey: os.Getenv("COINMARKETCAP_KEY"),
		SolanaRPCKey:     os.Getenv("SOLANA_RPC_KEY"),
		DexProviderKey:   os.Getenv("DEX_PROVIDER_KEY"),

		Port:            envInt("PORT", DefaultPort),
		APIKey:          os.Getenv("API_KEY"),
		CORSOrigin:      os.Getenv("CORS_ORIGIN"),
		RateLimitWindow: envMillis("RATE_LIMIT_WINDOW_MS", DefaultRateLimitWindow),
		RateLimitMax:    envInt("RATE_LIMIT_MAX", DefaultRateLimitMax),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		MockMode:          envBool("MOCK_MODE", false),
		LogLevel:          strings.ToLower(envStr("LOG_LEVEL", "info")),
		EnabledStrategies: envList("ENABLED_STRATEGIES"),
		EVMChains:         envList("EVM_CHAINS"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.TotalCapitalUSD <= 0 {
		return fmt.Errorf("TOTAL_CAPITAL must be positive, got %v", c.TotalCapitalUSD)
	}
	if c.TrackingInterval <= 0 {
		return fmt.Errorf("TRACKING_INTERVAL_SEC must be positive")
	}
	if c.ManageInterval <= 0 {
		return fmt.Errorf("MANAGE_INTERVAL_SEC must be positive")
	}
	if c.DiscoverInterval <= 0 {
		return fmt.Errorf("DISCOVER_INTERVAL_HOURS must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_MS must be positive")
	}
	return nil
}

// SolanaRPCURL returns the RPC endpoint, keyed when a key is configured.
func (c *Config) SolanaRPCURL() string {
	if c.SolanaRPCKey != "" {
		return "https://mainnet.helius-rpc.com/?api-key=" + c.SolanaRPCKey
	}
	return DefaultSolanaRPC
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envSeconds(key string, def time.Duration) time.Duration {
	if n := envInt(key, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func envHours(key string, def time.Duration) time.Duration {
	if n := envInt(key, 0); n > 0 {
		return time.Duration(n) * time.Hour
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	if n := envInt(key, 0); n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return def
}

// envList splits a comma-separated variable, trimming blanks.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
