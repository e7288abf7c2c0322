package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// Config holds the risk limits enforced by the Manager. Percentage
// fields are fractions (0.03 = 3%).
type Config struct {
	RiskPerTradePct    float64
	MaxPositionSizePct float64
	MaxDailyLossPct    float64
	MaxDrawdownPct     float64
	MaxConsecutiveLoss int
	UseHalfKelly       bool
	KellyCap           float64
	PDTMinEquity       float64
	PDTMaxDayTrades    int
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RiskPerTradePct:    0.02,
		MaxPositionSizePct: 0.25,
		MaxDailyLossPct:    0.03,
		MaxDrawdownPct:     0.10,
		MaxConsecutiveLoss: 3,
		UseHalfKelly:       true,
		KellyCap:           0.25,
		PDTMinEquity:       25000,
		PDTMaxDayTrades:    3,
	}
}

// AlertFunc receives risk alerts ("critical", "warning") for logging
// and notification. Called without the Manager's mutex held.
type AlertFunc func(level, message string)

// ValidationResult is the outcome of ValidateTrade. A rejection is a
// value, not an error.
type ValidationResult struct {
	Valid    bool
	Reason   string
	Warnings []string
}

// Manager owns the Metrics and enforces every trading limit. All state
// mutation happens under one mutex with no I/O while it is held;
// alerts are collected inside the critical section and emitted after
// release.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	metrics *Metrics
	breaker *Breaker
	onAlert AlertFunc
	now     func() time.Time
}

// NewManager creates a Manager around existing metrics (freshly created
// or loaded from persisted state).
func NewManager(cfg Config, metrics *Metrics) *Manager {
	if metrics == nil {
		metrics = NewMetrics()
	}

	m := &Manager{
		cfg:     cfg,
		metrics: metrics,
		breaker: NewBreaker(),
		onAlert: func(level, message string) {},
		now:     time.Now,
	}

	// Restore the latch from persisted state so a restart cannot
	// silently clear an active breach.
	if metrics.CircuitBreakerTriggered {
		m.breaker.Trip(metrics.BreakerReason)
	}

	return m
}

// SetAlertFunc installs the alert sink.
func (m *Manager) SetAlertFunc(fn AlertFunc) {
	if fn != nil {
		m.onAlert = fn
	}
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// CalculatePositionSize computes the dollar risk allocation for one
// trade: accountValue * riskPerTradePct, capped at the position-size
// limit. With a positive pricePerShare, the notional is rounded down to
// whole shares. Pure function of its inputs.
func (m *Manager) CalculatePositionSize(accountValue, riskPerTradePct, pricePerShare float64) (notional, shares float64) {
	if accountValue <= 0 || riskPerTradePct <= 0 {
		return 0, 0
	}

	notional = accountValue * riskPerTradePct

	if maxNotional := accountValue * m.cfg.MaxPositionSizePct; notional > maxNotional {
		notional = maxNotional
	}

	if pricePerShare > 0 {
		shares = math.Floor(notional / pricePerShare)
		notional = shares * pricePerShare
	}

	return notional, shares
}

// CalculateKellyFraction returns the Kelly bet fraction for the given
// win rate and win/loss ratio. Negative expectancy clamps to exactly 0;
// half-Kelly halves before capping.
func (m *Manager) CalculateKellyFraction(winRate, winLossRatio float64) float64 {
	if winLossRatio <= 0 {
		return 0
	}

	kelly := winRate - (1-winRate)/winLossRatio
	if kelly <= 0 {
		return 0
	}

	if m.cfg.UseHalfKelly {
		kelly /= 2
	}

	if kelly > m.cfg.KellyCap {
		kelly = m.cfg.KellyCap
	}

	return kelly
}

// KellyFromHistory derives win rate and win/loss ratio from a list of
// realized trade outcomes and returns the Kelly fraction. Breakeven
// trades are ignored.
func (m *Manager) KellyFromHistory(profitLosses []float64) float64 {
	var wins, losses int
	var winSum, lossSum float64

	for _, pl := range profitLosses {
		switch {
		case pl > 0:
			wins++
			winSum += pl
		case pl < 0:
			losses++
			lossSum += -pl
		}
	}

	if wins == 0 || losses == 0 {
		return 0
	}

	winRate := float64(wins) / float64(wins+losses)
	avgWin := winSum / float64(wins)
	avgLoss := lossSum / float64(losses)
	if avgLoss == 0 {
		return 0
	}

	return m.CalculateKellyFraction(winRate, avgWin/avgLoss)
}

// KellyFraction derives the Kelly sizing fraction from the manager's
// own trade history. Zero until both wins and losses exist.
func (m *Manager) KellyFraction() float64 {
	m.mu.Lock()
	wins := m.metrics.WinningTrades
	losses := m.metrics.LosingTrades
	grossProfit := m.metrics.GrossProfit
	grossLoss := m.metrics.GrossLoss
	m.mu.Unlock()

	if wins == 0 || losses == 0 || grossLoss == 0 {
		return 0
	}

	winRate := float64(wins) / float64(wins+losses)
	avgWin := grossProfit / float64(wins)
	avgLoss := grossLoss / float64(losses)

	return m.CalculateKellyFraction(winRate, avgWin/avgLoss)
}

// CanTrade evaluates the circuit breakers and the PDT rule, in order:
// PDT hard block, already-latched breaker, daily-loss breach, drawdown
// breach (peak updated first), consecutive-loss warning. The first
// three block; the warning does not.
func (m *Manager) CanTrade(accountValue, dailyPL float64, account *types.AccountSnapshot) bool {
	var alerts []alert

	m.mu.Lock()

	allowed := func() bool {
		// (a) PDT hard block, independent of P/L.
		if account != nil && account.DaytradeCount >= m.cfg.PDTMaxDayTrades && account.Equity < m.cfg.PDTMinEquity {
			alerts = append(alerts, alert{"critical", fmt.Sprintf(
				"PDT block: %d day trades with equity $%.2f below $%.2f minimum",
				account.DaytradeCount, account.Equity, m.cfg.PDTMinEquity)})
			return false
		}

		// An already-tripped breaker blocks until the daily reset,
		// regardless of current inputs.
		if m.breaker.Tripped() {
			return false
		}

		if accountValue <= 0 {
			return false
		}

		// (b) Daily-loss breaker.
		if dailyPL/accountValue < -m.cfg.MaxDailyLossPct {
			reason := fmt.Sprintf("daily loss %.2f%% breached %.2f%% limit",
				-dailyPL/accountValue*100, m.cfg.MaxDailyLossPct*100)
			m.trip(reason)
			alerts = append(alerts, alert{"critical", "circuit breaker tripped: " + reason})
			return false
		}

		// Peak is updated before the drawdown check and never decreases.
		if accountValue > m.metrics.PeakAccountValue {
			m.metrics.PeakAccountValue = accountValue
		}

		// (c) Drawdown breaker.
		if m.metrics.PeakAccountValue > 0 {
			drawdown := (m.metrics.PeakAccountValue - accountValue) / m.metrics.PeakAccountValue * 100
			if drawdown > m.metrics.MaxDrawdownReached {
				m.metrics.MaxDrawdownReached = drawdown
			}
			if drawdown > m.cfg.MaxDrawdownPct*100 {
				reason := fmt.Sprintf("drawdown %.2f%% breached %.2f%% limit",
					drawdown, m.cfg.MaxDrawdownPct*100)
				m.trip(reason)
				alerts = append(alerts, alert{"critical", "circuit breaker tripped: " + reason})
				return false
			}
		}

		// (d) Consecutive-loss warning, non-blocking.
		if m.metrics.ConsecutiveLosses >= m.cfg.MaxConsecutiveLoss {
			alerts = append(alerts, alert{"warning", fmt.Sprintf(
				"%d consecutive losses, trading continues under caution", m.metrics.ConsecutiveLosses)})
		}

		return true
	}()

	m.mu.Unlock()

	m.emit(alerts)
	return allowed
}

// ValidateTrade checks one proposal against the limits. Hard failures
// short-circuit to invalid; soft concerns accumulate as warnings on a
// valid result.
func (m *Manager) ValidateTrade(symbol string, amount, sentimentScore, accountValue float64, side types.Side, account *types.AccountSnapshot) ValidationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.breaker.Tripped() {
		return ValidationResult{Valid: false, Reason: "circuit breaker tripped: " + m.breaker.Reason()}
	}

	if account != nil && account.DaytradeCount >= m.cfg.PDTMaxDayTrades && account.Equity < m.cfg.PDTMinEquity {
		return ValidationResult{Valid: false, Reason: "PDT limit reached below equity minimum"}
	}

	if amount <= 0 {
		return ValidationResult{Valid: false, Reason: fmt.Sprintf("non-positive trade amount %.2f", amount)}
	}

	if accountValue <= 0 {
		return ValidationResult{Valid: false, Reason: "non-positive account value"}
	}

	if pct := amount / accountValue; pct > m.cfg.MaxPositionSizePct {
		return ValidationResult{Valid: false, Reason: fmt.Sprintf(
			"position size %.1f%% exceeds %.1f%% cap", pct*100, m.cfg.MaxPositionSizePct*100)}
	}

	var warnings []string

	if math.Abs(sentimentScore) < 0.1 {
		warnings = append(warnings, fmt.Sprintf("weak sentiment %.2f for %s", sentimentScore, symbol))
	}

	if (side == types.SideBuy && sentimentScore < -0.1) || (side == types.SideSell && sentimentScore > 0.1) {
		warnings = append(warnings, fmt.Sprintf("sentiment %.2f conflicts with %s direction", sentimentScore, side))
	}

	if m.metrics.ConsecutiveLosses >= m.cfg.MaxConsecutiveLoss {
		warnings = append(warnings, fmt.Sprintf("trading after %d consecutive losses", m.metrics.ConsecutiveLosses))
	}

	return ValidationResult{Valid: true, Warnings: warnings}
}

// RecordTradeResult applies one realized trade outcome. This is the
// only path that changes the loss-streak counter, so callers invoke it
// exactly once per outcome. A breakeven result counts the trade without
// touching the streak.
func (m *Manager) RecordTradeResult(profitLoss float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.TotalTrades++
	m.metrics.DailyTrades++
	m.metrics.DailyPL += profitLoss

	switch {
	case profitLoss > 0:
		m.metrics.WinningTrades++
		m.metrics.GrossProfit += profitLoss
		m.metrics.ConsecutiveLosses = 0
	case profitLoss < 0:
		m.metrics.LosingTrades++
		m.metrics.GrossLoss += -profitLoss
		m.metrics.ConsecutiveLosses++
		if m.metrics.ConsecutiveLosses > m.metrics.MaxConsecutiveLosses {
			m.metrics.MaxConsecutiveLosses = m.metrics.ConsecutiveLosses
		}
	}
}

// ResetDailyCounters zeroes the daily fields and re-arms the breaker.
// Called once at the start of each trading day, never mid-day: a mid-day
// reset would silently clear an active breach. Idempotent.
func (m *Manager) ResetDailyCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.DailyPL = 0
	m.metrics.DailyTrades = 0
	m.breaker.Reset()
	m.metrics.CircuitBreakerTriggered = false
	m.metrics.BreakerReason = ""
	m.metrics.LastResetDate = m.now().Format("2006-01-02")
}

// MaybeResetDaily runs the daily reset when the calendar day has rolled
// over since the last reset.
func (m *Manager) MaybeResetDaily() bool {
	m.mu.Lock()
	today := m.now().Format("2006-01-02")
	rolled := m.metrics.LastResetDate != today
	m.mu.Unlock()

	if rolled {
		m.ResetDailyCounters()
	}
	return rolled
}

// Tripped reports the breaker latch state.
func (m *Manager) Tripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breaker.Tripped()
}

// BreakerState returns the latch state string for status output.
func (m *Manager) BreakerState() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breaker.State().String()
}

// Snapshot returns a copy of the current metrics for persistence and
// reporting.
func (m *Manager) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.metrics
}

// DailyPL returns the accumulated realized P/L for the day.
func (m *Manager) DailyPL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics.DailyPL
}

// trip latches the breaker and mirrors the flag into metrics. Callers
// hold the mutex.
func (m *Manager) trip(reason string) {
	m.breaker.Trip(reason)
	m.metrics.CircuitBreakerTriggered = true
	m.metrics.BreakerReason = m.breaker.Reason()
}

type alert struct {
	level   string
	message string
}

func (m *Manager) emit(alerts []alert) {
	for _, a := range alerts {
		m.onAlert(a.level, a.message)
	}
}
