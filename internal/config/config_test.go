package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, []string{"AAPL", "MSFT", "SPY"}, cfg.Trading.Symbols)
	assert.True(t, cfg.Trading.DryRun)
	assert.Equal(t, 0.03, cfg.Risk.MaxDailyLossPct)
	assert.Equal(t, 0.10, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, 0.03, cfg.Liquidation.AutoLiquidatePct)
	assert.Equal(t, 0.05, cfg.Liquidation.FullLiquidatePct)
	assert.Equal(t, "paper", cfg.Broker.Name)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRADING_SYMBOLS", "TSLA, NVDA")
	t.Setenv("MAX_DAILY_LOSS_PCT", "0.05")
	t.Setenv("CYCLE_INTERVAL", "1m")
	t.Setenv("DRY_RUN", "false")

	cfg := Load()

	assert.Equal(t, []string{"TSLA", "NVDA"}, cfg.Trading.Symbols)
	assert.Equal(t, 0.05, cfg.Risk.MaxDailyLossPct)
	assert.Equal(t, time.Minute, cfg.Trading.CycleInterval)
	assert.False(t, cfg.Trading.DryRun)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"risk":{"max_drawdown_pct":0.15,"kelly_cap":0.2},"liquidation":{"safe_havens":["BIL"]}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := Load()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, 0.15, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, 0.2, cfg.Risk.KellyCap)
	assert.Equal(t, []string{"BIL"}, cfg.Liquidation.SafeHavens)
	// Untouched fields keep their env defaults.
	assert.Equal(t, 0.03, cfg.Risk.MaxDailyLossPct)
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil }},
		{"zero risk per trade", func(c *Config) { c.Risk.RiskPerTradePct = 0 }},
		{"negative drawdown", func(c *Config) { c.Risk.MaxDrawdownPct = -0.1 }},
		{"partial tier above full tier", func(c *Config) {
			c.Liquidation.AutoLiquidatePct = 0.06
			c.Liquidation.FullLiquidatePct = 0.05
		}},
		{"partial tier equals full tier", func(c *Config) {
			c.Liquidation.AutoLiquidatePct = 0.05
			c.Liquidation.FullLiquidatePct = 0.05
		}},
		{"sentiment threshold out of range", func(c *Config) { c.Pipeline.SentimentRejectBelow = -2 }},
		{"unknown broker", func(c *Config) { c.Broker.Name = "alpaca" }},
		{"bybit without credentials", func(c *Config) { c.Broker.Name = "bybit" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
