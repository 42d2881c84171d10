package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "stream", cfg.Mode)
	assert.Equal(t, "A", cfg.Instance)
	assert.Equal(t, 20, cfg.Depth)
	assert.Equal(t, 100, cfg.Pipeline.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.BatchMaxWait.Duration)

	require.Len(t, cfg.Venues, 7)
	assert.Equal(t, "btcusdt", cfg.Venues["binance"].Symbols["BTC-USD"])
	assert.Equal(t, "BTCUSDT", cfg.Venues["bybit"].Symbols["BTC-USD"])
	assert.Equal(t, "BTC-USDT", cfg.Venues["okx"].Symbols["BTC-USD"])
	assert.Equal(t, "KRW-BTC", cfg.Venues["upbit"].Symbols["BTC-KRW"])
	assert.Equal(t, "BTC_KRW", cfg.Venues["bithumb"].Symbols["BTC-KRW"])
	assert.Equal(t, "BTC-KRW", cfg.Venues["coinone"].Symbols["BTC-KRW"])
	assert.Equal(t, "btc_krw", cfg.Venues["korbit"].Symbols["BTC-KRW"])
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Depth = 0
	cfg.Pipeline.BatchSize = 0
	cfg.Venues["ftx"] = VenueConfig{Enabled: true}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "replay"`)
	assert.Contains(t, err.Error(), "depth must be >= 1")
	assert.Contains(t, err.Error(), "batch_size must be >= 1")
	assert.Contains(t, err.Error(), `unknown venue "ftx"`)
}

func TestVenueWithoutSymbolsIsNotAValidationError(t *testing.T) {
	cfg := Defaults()
	cfg.Venues["korbit"] = VenueConfig{Enabled: true}
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "print"
depth = 5

[pipeline]
batch_size = 50
batch_max_wait = "250ms"

[venues.binance]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "print", cfg.Mode)
	assert.Equal(t, 5, cfg.Depth)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.BatchMaxWait.Duration)
	assert.False(t, cfg.Venues["binance"].Enabled)
	// Untouched venues keep their defaults.
	assert.True(t, cfg.Venues["upbit"].Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OBSTREAM_MODE", "print")
	t.Setenv("OBSTREAM_INSTANCE", "B")
	t.Setenv("OBSTREAM_PIPELINE_BATCH_MAX_WAIT", "2s")
	t.Setenv("OBSTREAM_VENUES", "upbit, bithumb")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "print", cfg.Mode)
	assert.Equal(t, "B", cfg.Instance)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.BatchMaxWait.Duration)
	assert.True(t, cfg.Venues["upbit"].Enabled)
	assert.True(t, cfg.Venues["bithumb"].Enabled)
	assert.False(t, cfg.Venues["binance"].Enabled)
	assert.False(t, cfg.Venues["korbit"].Enabled)
}
