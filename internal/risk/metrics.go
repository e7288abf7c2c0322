package risk

import "time"

// Metrics is the persisted risk bookkeeping for the funnel. It is owned
// by the Manager: only the Manager (and the liquidator through the
// Manager) mutates it, always under the Manager's mutex. Daily fields
// reset once per calendar day; all-time counters persist indefinitely.
type Metrics struct {
	DailyPL              float64 `json:"daily_pl"`
	DailyTrades          int     `json:"daily_trades"`
	ConsecutiveLosses    int     `json:"consecutive_losses"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	GrossProfit          float64 `json:"gross_profit"`
	GrossLoss            float64 `json:"gross_loss"` // stored positive

	PeakAccountValue   float64 `json:"peak_account_value"`
	MaxDrawdownReached float64 `json:"max_drawdown_reached"` // percent points

	CircuitBreakerTriggered bool   `json:"circuit_breaker_triggered"`
	BreakerReason           string `json:"breaker_reason,omitempty"`

	LastResetDate string `json:"last_reset_date"` // YYYY-MM-DD
}

// NewMetrics returns zeroed metrics stamped with today's date.
func NewMetrics() *Metrics {
	return &Metrics{
		LastResetDate: time.Now().Format("2006-01-02"),
	}
}

// WinRate returns the all-time fraction of winning trades among trades
// with a non-zero outcome.
func (m *Metrics) WinRate() float64 {
	decided := m.WinningTrades + m.LosingTrades
	if decided == 0 {
		return 0
	}
	return float64(m.WinningTrades) / float64(decided)
}
