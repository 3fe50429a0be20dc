package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL_TEST", "sqlite::memory:")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "sqlite::memory:", cfg.DatabaseURL)
	assert.Equal(t, "@every 5m", cfg.PriceRefreshSpec)
	assert.Equal(t, 15*time.Second, cfg.PriceCacheTTL)
	assert.Equal(t, uint64(4), cfg.ConfirmRounds)
	assert.Equal(t, UpfrontFromJob, cfg.UpfrontPolicy)
	assert.Equal(t, uint64(500_000), cfg.FixedUpfront)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_MODE", "MEMORY")
	t.Setenv("SETTLEMENT_UPFRONT_POLICY", "Fixed")
	t.Setenv("PRICE_REFRESH_SPEC", "@every 1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LedgerMemory, cfg.LedgerMode)
	assert.Equal(t, UpfrontFixed, cfg.UpfrontPolicy)
	assert.Equal(t, "@every 1m", cfg.PriceRefreshSpec)
}

func TestUpfrontPolicy(t *testing.T) {
	assert.Equal(t, UpfrontFromJob, upfrontPolicy(""))
	assert.Equal(t, UpfrontFromJob, upfrontPolicy("bogus"))
	assert.Equal(t, UpfrontFixed, upfrontPolicy(" fixed "))
}
