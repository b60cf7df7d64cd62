// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendBadger = "badger"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Sui fullnode JSON-RPC endpoint
	RPCURL      string
	RPCTimeout  time.Duration
	RPCRetryMax int

	// Transaction history pagination
	TxPageSize    int
	TxPageDelay   time.Duration
	TxFetchBudget time.Duration
	TxMaxPages    int

	// Owned object pagination for the NFT scan
	NFTPageSize  int
	NFTPageDelay time.Duration
	NFTMaxPages  int

	// Result cache
	CacheTTL     time.Duration
	CacheBackend string

	// Default reporting year
	ReportYear int

	// Optional protocol registry file; the embedded registry is used when empty
	RegistryPath string

	// Boundary limits
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	// Circuit breaker around the fullnode
	BreakerFailures   int
	BreakerResetDelay time.Duration

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Report export
	Export ExportConfig
}

// ExportConfig configures publication of generated report summaries.
type ExportConfig struct {
	BatchSize     int
	Interval      time.Duration
	KafkaBrokers  []string
	KafkaTopic    string
	WebhookURL    string
	WebhookAPIKey string
}

// Enabled reports whether any export sink is configured.
func (e ExportConfig) Enabled() bool {
	return len(e.KafkaBrokers) > 0 || e.WebhookURL != ""
}

// Load creates a new Config from environment variables, reading a .env file first if present.
func Load() (Config, error) {
	// Missing .env is fine; real env vars take priority over it.
	_ = godotenv.Load()

	cfg := Config{
		Port:              GetEnvOrDefault("PORT", "8080"),
		RPCURL:            GetEnvOrDefault("SUI_RPC_URL", "https://fullnode.mainnet.sui.io:443"),
		RPCTimeout:        GetEnvAsDuration("RPC_TIMEOUT", 20*time.Second),
		RPCRetryMax:       GetEnvAsInt("RPC_RETRY_MAX", 0),
		TxPageSize:        GetEnvAsInt("TX_PAGE_SIZE", 50),
		TxPageDelay:       GetEnvAsDuration("TX_PAGE_DELAY", 25*time.Millisecond),
		TxFetchBudget:     GetEnvAsDuration("TX_FETCH_BUDGET", 55*time.Second),
		TxMaxPages:        GetEnvAsInt("TX_MAX_PAGES", 0),
		NFTPageSize:       GetEnvAsInt("NFT_PAGE_SIZE", 50),
		NFTPageDelay:      GetEnvAsDuration("NFT_PAGE_DELAY", 50*time.Millisecond),
		NFTMaxPages:       GetEnvAsInt("NFT_MAX_PAGES", 10),
		CacheTTL:          GetEnvAsDuration("CACHE_TTL", time.Hour),
		CacheBackend:      strings.ToLower(GetEnvOrDefault("CACHE_BACKEND", CacheBackendMemory)),
		ReportYear:        GetEnvAsInt("REPORT_YEAR", 2025),
		RegistryPath:      GetEnvOrDefault("REGISTRY_PATH", ""),
		RequestTimeout:    GetEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		RateLimitRPS:      GetEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    GetEnvAsInt("RATE_LIMIT_BURST", 10),
		BreakerFailures:   GetEnvAsInt("BREAKER_FAILURES", 5),
		BreakerResetDelay: GetEnvAsDuration("BREAKER_RESET_DELAY", 30*time.Second),
		OtelEndpoint:      GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Export: ExportConfig{
			BatchSize:     GetEnvAsInt("EXPORT_BATCH_SIZE", 50),
			Interval:      GetEnvAsDuration("EXPORT_INTERVAL", time.Minute),
			KafkaBrokers:  GetEnvAsList("KAFKA_BROKERS"),
			KafkaTopic:    GetEnvOrDefault("KAFKA_TOPIC", "wrapped.reports"),
			WebhookURL:    GetEnvOrDefault("WEBHOOK_URL", ""),
			WebhookAPIKey: GetEnvOrDefault("WEBHOOK_API_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("SUI_RPC_URL is required")
	}
	if c.TxPageSize <= 0 || c.NFTPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.TxFetchBudget <= 0 {
		return fmt.Errorf("TX_FETCH_BUDGET must be positive")
	}
	if c.RequestTimeout > 0 && c.TxFetchBudget >= c.RequestTimeout {
		return fmt.Errorf("TX_FETCH_BUDGET (%s) must be shorter than REQUEST_TIMEOUT (%s)", c.TxFetchBudget, c.RequestTimeout)
	}
	if c.NFTMaxPages <= 0 {
		return fmt.Errorf("NFT_MAX_PAGES must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendBadger:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.RPCRetryMax < 0 {
		return fmt.Errorf("RPC_RETRY_MAX must not be negative")
	}
	return nil
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvAsList splits a comma separated environment variable, dropping empty items
func GetEnvAsList(key string) []string {
	value, exists := GetEnv(key)
	if !exists {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
