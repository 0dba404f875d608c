package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// RPC settings
	RPCUrl     string
	Cluster    string
	Commitment string

	// Wallet
	WalletPrivateKey string

	// Submission
	ConfirmTimeout     time.Duration
	EnsureOwnerAccount bool

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RateLimit    float64 // requests per second, 0 disables limiting
	RateBurst    int

	// Readers
	BalancePollInterval time.Duration
	HistoryPollInterval time.Duration
	HistoryLimit        int

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// AI
	OpenRouterAPIKey string

	// API server
	APIAddr string
	APIKey  string
	DevMode bool

	LogLevel string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:     getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
		Cluster:    getEnv("SOLANA_CLUSTER", "devnet"),
		Commitment: getEnv("COMMITMENT", "confirmed"),

		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),

		ConfirmTimeout:     getDurationEnv("CONFIRM_TIMEOUT", 60*time.Second),
		EnsureOwnerAccount: getBoolEnv("ENSURE_OWNER_ACCOUNT", true),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 1*time.Second),
		RateLimit:    getFloatEnv("RPC_RATE_LIMIT", 5),
		RateBurst:    getIntEnv("RPC_RATE_BURST", 10),

		// Readers
		BalancePollInterval: getDurationEnv("BALANCE_POLL_INTERVAL", 10*time.Second),
		HistoryPollInterval: getDurationEnv("HISTORY_POLL_INTERVAL", 30*time.Second),
		HistoryLimit:        getIntEnv("HISTORY_LIMIT", 10),

		// Redis (optional)
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse (optional)
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solana"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	u, err := url.Parse(c.RPCUrl)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SOLANA_RPC_URL must be an absolute URL, got %q", c.RPCUrl)
	}

	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("COMMITMENT must be processed, confirmed or finalized, got %q", c.Commitment)
	}

	switch c.Cluster {
	case "devnet", "testnet", "mainnet-beta", "custom":
	default:
		return fmt.Errorf("SOLANA_CLUSTER must be devnet, testnet, mainnet-beta or custom, got %q", c.Cluster)
	}

	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RPC_RATE_LIMIT must be >= 0")
	}
	if c.BalancePollInterval <= 0 || c.HistoryPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be > 0")
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > 1000 {
		return fmt.Errorf("HISTORY_LIMIT must be between 1 and 1000")
	}
	return nil
}

// ClickHouseEnabled reports whether the operation log is configured.
func (c *Config) ClickHouseEnabled() bool {
	return c.ClickHouseAddr != "" && c.ClickHouseDatabase != ""
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
