package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full runtime configuration of the funnel bot.
// Values are env-first with defaults; an optional JSON file can overlay
// them (see LoadFile).
type Config struct {
	Environment string `json:"environment"`

	Trading struct {
		Symbols       []string      `json:"symbols"`
		CycleInterval time.Duration `json:"-"`
		DryRun        bool          `json:"dry_run"`
	} `json:"trading"`

	Risk struct {
		RiskPerTradePct    float64 `json:"risk_per_trade_pct"`    // fraction, e.g. 0.02
		MaxPositionSizePct float64 `json:"max_position_size_pct"` // fraction of account value
		MaxDailyLossPct    float64 `json:"max_daily_loss_pct"`
		MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
		MaxConsecutiveLoss int     `json:"max_consecutive_losses"`
		UseHalfKelly       bool    `json:"use_half_kelly"`
		KellyCap           float64 `json:"kelly_cap"`
		PDTMinEquity       float64 `json:"pdt_min_equity"`
		PDTMaxDayTrades    int     `json:"pdt_max_day_trades"`
	} `json:"risk"`

	Liquidation struct {
		AutoLiquidatePct float64  `json:"auto_liquidate_pct"` // partial tier, fraction
		FullLiquidatePct float64  `json:"full_liquidate_pct"` // full tier, fraction
		SafeHavens       []string `json:"safe_havens"`
	} `json:"liquidation"`

	Pipeline struct {
		SignalThreshold      float64 `json:"signal_threshold"`
		FilterThreshold      float64 `json:"filter_threshold"`
		SentimentRejectBelow float64 `json:"sentiment_reject_below"`
		NeutralSentiment     float64 `json:"neutral_sentiment"`
		UseKellySizing       bool    `json:"use_kelly_sizing"`
	} `json:"pipeline"`

	Budget struct {
		DailyLimit   float64 `json:"daily_limit"`   // dollars of sentiment spend per day
		CallEstimate float64 `json:"call_estimate"` // estimated cost of one scoring call
	} `json:"budget"`

	Staleness struct {
		AccountMaxAge    time.Duration `json:"-"`
		MarketDataMaxAge time.Duration `json:"-"`
		StateMaxAge      time.Duration `json:"-"`
	} `json:"-"`

	Broker struct {
		Name      string `json:"name"` // "paper" or "bybit"
		APIKey    string `json:"-"`
		APISecret string `json:"-"`
		Testnet   bool   `json:"testnet"`
		Demo      bool   `json:"demo"`
		Category  string `json:"category"` // bybit product category, e.g. "linear"
	} `json:"broker"`

	Sentiment struct {
		Endpoint string        `json:"endpoint"`
		Timeout  time.Duration `json:"-"`
	} `json:"sentiment"`

	State struct {
		Dir         string `json:"dir"`
		JournalPath string `json:"journal_path"`
	} `json:"state"`

	Monitoring struct {
		PrometheusPort int `json:"prometheus_port"`
		HealthPort     int `json:"health_port"`
	} `json:"monitoring"`

	Notifications struct {
		TelegramToken  string `json:"-"`
		TelegramChatID string `json:"-"`
	} `json:"-"`
}

// Load builds a Config from environment variables with sane defaults.
func Load() *Config {
	cfg := &Config{}
	cfg.Environment = getEnv("ENV", "development")

	cfg.Trading.Symbols = getEnvList("TRADING_SYMBOLS", []string{"AAPL", "MSFT", "SPY"})
	cfg.Trading.CycleInterval = getEnvDuration("CYCLE_INTERVAL", 5*time.Minute)
	cfg.Trading.DryRun = getEnvBool("DRY_RUN", true)

	cfg.Risk.RiskPerTradePct = getEnvFloat("RISK_PER_TRADE_PCT", 0.02)
	cfg.Risk.MaxPositionSizePct = getEnvFloat("MAX_POSITION_SIZE_PCT", 0.25)
	cfg.Risk.MaxDailyLossPct = getEnvFloat("MAX_DAILY_LOSS_PCT", 0.03)
	cfg.Risk.MaxDrawdownPct = getEnvFloat("MAX_DRAWDOWN_PCT", 0.10)
	cfg.Risk.MaxConsecutiveLoss = getEnvInt("MAX_CONSECUTIVE_LOSSES", 3)
	cfg.Risk.UseHalfKelly = getEnvBool("USE_HALF_KELLY", true)
	cfg.Risk.KellyCap = getEnvFloat("KELLY_CAP", 0.25)
	cfg.Risk.PDTMinEquity = getEnvFloat("PDT_MIN_EQUITY", 25000)
	cfg.Risk.PDTMaxDayTrades = getEnvInt("PDT_MAX_DAY_TRADES", 3)

	cfg.Liquidation.AutoLiquidatePct = getEnvFloat("AUTO_LIQUIDATE_PCT", 0.03)
	cfg.Liquidation.FullLiquidatePct = getEnvFloat("FULL_LIQUIDATE_PCT", 0.05)
	cfg.Liquidation.SafeHavens = getEnvList("SAFE_HAVENS", []string{"BIL", "SGOV", "SHV"})

	cfg.Pipeline.SignalThreshold = getEnvFloat("SIGNAL_THRESHOLD", 0.5)
	cfg.Pipeline.FilterThreshold = getEnvFloat("FILTER_THRESHOLD", 0.6)
	cfg.Pipeline.SentimentRejectBelow = getEnvFloat("SENTIMENT_REJECT_BELOW", -0.2)
	cfg.Pipeline.NeutralSentiment = getEnvFloat("NEUTRAL_SENTIMENT", 0.0)
	cfg.Pipeline.UseKellySizing = getEnvBool("USE_KELLY_SIZING", false)

	cfg.Budget.DailyLimit = getEnvFloat("SENTIMENT_DAILY_BUDGET", 5.0)
	cfg.Budget.CallEstimate = getEnvFloat("SENTIMENT_CALL_ESTIMATE", 0.02)

	cfg.Staleness.AccountMaxAge = getEnvDuration("ACCOUNT_MAX_AGE", 24*time.Hour)
	cfg.Staleness.MarketDataMaxAge = getEnvDuration("MARKET_DATA_MAX_AGE", 24*time.Hour)
	cfg.Staleness.StateMaxAge = getEnvDuration("STATE_MAX_AGE", 7*24*time.Hour)

	cfg.Broker.Name = getEnv("BROKER", "paper")
	cfg.Broker.APIKey = getEnv("BROKER_API_KEY", "")
	cfg.Broker.APISecret = getEnv("BROKER_API_SECRET", "")
	cfg.Broker.Testnet = getEnvBool("BROKER_TESTNET", true)
	cfg.Broker.Demo = getEnvBool("BROKER_DEMO", false)
	cfg.Broker.Category = getEnv("BROKER_CATEGORY", "linear")

	cfg.Sentiment.Endpoint = getEnv("SENTIMENT_ENDPOINT", "")
	cfg.Sentiment.Timeout = getEnvDuration("SENTIMENT_TIMEOUT", 10*time.Second)

	cfg.State.Dir = getEnv("STATE_DIR", "state")
	cfg.State.JournalPath = getEnv("JOURNAL_PATH", "state/audit.db")

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)

	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	return cfg
}

// LoadFile overlays values from a JSON config file onto cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate rejects configurations that would make the risk limits
// meaningless.
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("no trading symbols configured")
	}
	if c.Risk.RiskPerTradePct <= 0 || c.Risk.RiskPerTradePct > 1 {
		return fmt.Errorf("risk_per_trade_pct must be in (0,1], got %v", c.Risk.RiskPerTradePct)
	}
	if c.Risk.MaxPositionSizePct <= 0 || c.Risk.MaxPositionSizePct > 1 {
		return fmt.Errorf("max_position_size_pct must be in (0,1], got %v", c.Risk.MaxPositionSizePct)
	}
	if c.Risk.MaxDailyLossPct <= 0 {
		return fmt.Errorf("max_daily_loss_pct must be positive")
	}
	if c.Risk.MaxDrawdownPct <= 0 {
		return fmt.Errorf("max_drawdown_pct must be positive")
	}
	if c.Liquidation.AutoLiquidatePct <= 0 || c.Liquidation.FullLiquidatePct <= 0 {
		return fmt.Errorf("liquidation thresholds must be positive")
	}
	if c.Liquidation.AutoLiquidatePct >= c.Liquidation.FullLiquidatePct {
		return fmt.Errorf("auto_liquidate_pct (%v) must be below full_liquidate_pct (%v)",
			c.Liquidation.AutoLiquidatePct, c.Liquidation.FullLiquidatePct)
	}
	if c.Pipeline.FilterThreshold < 0 || c.Pipeline.FilterThreshold > 1 {
		return fmt.Errorf("filter_threshold must be in [0,1]")
	}
	if c.Pipeline.SentimentRejectBelow < -1 || c.Pipeline.SentimentRejectBelow > 1 {
		return fmt.Errorf("sentiment_reject_below must be in [-1,1]")
	}
	if c.Broker.Name != "paper" && c.Broker.Name != "bybit" {
		return fmt.Errorf("unknown broker %q", c.Broker.Name)
	}
	if c.Broker.Name == "bybit" && (c.Broker.APIKey == "" || c.Broker.APISecret == "") {
		return fmt.Errorf("bybit broker requires BROKER_API_KEY and BROKER_API_SECRET")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
