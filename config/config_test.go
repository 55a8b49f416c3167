package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepydogo/peceto-trading-bot/internal/indicator"
)

// isolate points the .env lookup at an empty temp dir so a developer's own
// .env does not leak into the test.
func isolate(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv(envFileEnv, filepath.Join(dir, ".env"))
	t.Setenv(fileEnv, "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "binance", cfg.Market.Exchange)
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, "15m", cfg.Interval)
	assert.Equal(t, 200, cfg.Limit)
	assert.Equal(t, indicator.DefaultConfig(), cfg.Indicators)
	assert.Equal(t, 2*time.Hour, cfg.Cooldown)
	assert.Equal(t, "buy", cfg.TieBreak)
	assert.Equal(t, 64, cfg.Dispatch.QueueSize)
	assert.Equal(t, 3, cfg.Dispatch.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Dispatch.Retry.InitialDelay)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Redis.LatestTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PECETO_SYMBOL", "ethusdt")
	t.Setenv("PECETO_INTERVAL", "1h")
	t.Setenv("PECETO_MARKET_EXCHANGE", "Bybit")
	t.Setenv("PECETO_INDICATORS_EMA_SHORT", "12")
	t.Setenv("PECETO_COOLDOWN", "45m")
	t.Setenv("PECETO_TIE_BREAK", "sell")
	t.Setenv("PECETO_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("PECETO_TELEGRAM_CHAT_ID", "-1001234")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, "1h", cfg.Interval)
	assert.Equal(t, "bybit", cfg.Market.Exchange)
	assert.Equal(t, 12, cfg.Indicators.EMAShortPeriod)
	assert.Equal(t, 45*time.Minute, cfg.Cooldown)
	assert.Equal(t, "sell", cfg.TieBreak)
	assert.Equal(t, int64(-1001234), cfg.Telegram.ChatID)
}

func TestLoad_DotEnvAndFile(t *testing.T) {
	dir := isolate(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PECETO_REDIS_ADDR=localhost:6379\n"), 0o600))
	yaml := []byte("interval: 5m\nindicators:\n  rsi_period: 21\ndispatch:\n  queue_size: 8\n")
	path := filepath.Join(dir, "peceto.yaml")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv(fileEnv, path)
	// godotenv does not overwrite, so make sure the key starts unset.
	os.Unsetenv("PECETO_REDIS_ADDR")
	t.Cleanup(func() { os.Unsetenv("PECETO_REDIS_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "5m", cfg.Interval)
	assert.Equal(t, 21, cfg.Indicators.RSIPeriod)
	assert.Equal(t, 8, cfg.Dispatch.QueueSize)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv(fileEnv, filepath.Join(dir, "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown exchange", func(c *Config) { c.Market.Exchange = "kraken" }, "unknown exchange"},
		{"empty symbol", func(c *Config) { c.Symbol = "" }, "symbol is required"},
		{"bybit has no 1s", func(c *Config) { c.Market.Exchange = "bybit"; c.Interval = "1s" }, "not supported"},
		{"short limit", func(c *Config) { c.Limit = 1 }, "limit"},
		{"zero period", func(c *Config) { c.Indicators.EMALongPeriod = 0 }, "ema_long"},
		{"zero cooldown", func(c *Config) { c.Cooldown = 0 }, "cooldown"},
		{"bad tie break", func(c *Config) { c.TieBreak = "both" }, "tie break"},
		{"token without chat", func(c *Config) { c.Telegram.Token = "x" }, "chat_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
