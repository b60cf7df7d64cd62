package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50, cfg.TxPageSize)
	assert.Equal(t, 25*time.Millisecond, cfg.TxPageDelay)
	assert.Equal(t, 55*time.Second, cfg.TxFetchBudget)
	assert.Equal(t, 10, cfg.NFTMaxPages)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, 2025, cfg.ReportYear)
	assert.Equal(t, 0, cfg.RPCRetryMax)
	assert.False(t, cfg.Export.Enabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("CACHE_BACKEND", "BADGER")
	t.Setenv("REPORT_YEAR", "2024")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, CacheBackendBadger, cfg.CacheBackend)
	assert.Equal(t, 2024, cfg.ReportYear)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Export.KafkaBrokers)
	assert.True(t, cfg.Export.Enabled())
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("TX_PAGE_SIZE", "lots")
	t.Setenv("CACHE_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.TxPageSize)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestValidate(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing rpc", func(c *Config) { c.RPCURL = "" }, "SUI_RPC_URL"},
		{"zero page size", func(c *Config) { c.TxPageSize = 0 }, "page sizes"},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }, "CACHE_TTL"},
		{"unknown backend", func(c *Config) { c.CacheBackend = "redis" }, "CACHE_BACKEND"},
		{"negative retries", func(c *Config) { c.RPCRetryMax = -1 }, "RPC_RETRY_MAX"},
		{"budget outlasts request", func(c *Config) { c.TxFetchBudget = c.RequestTimeout }, "TX_FETCH_BUDGET"},
		{"budget above request timeout", func(c *Config) { c.TxFetchBudget = 2 * time.Minute }, "REQUEST_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
