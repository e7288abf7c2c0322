package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

type capturedAlert struct {
	level   string
	message string
}

func newTestManager() (*Manager, *[]capturedAlert) {
	m := NewManager(DefaultConfig(), NewMetrics())
	alerts := &[]capturedAlert{}
	m.SetAlertFunc(func(level, message string) {
		*alerts = append(*alerts, capturedAlert{level, message})
	})
	return m, alerts
}

func TestCalculatePositionSize(t *testing.T) {
	m, _ := newTestManager()

	notional, shares := m.CalculatePositionSize(100000, 0.02, 0)
	assert.Equal(t, 2000.0, notional)
	assert.Zero(t, shares)

	// Risk fraction above the position cap gets clamped.
	notional, _ = m.CalculatePositionSize(100000, 0.50, 0)
	assert.Equal(t, 25000.0, notional)

	// With a share price, whole shares only.
	notional, shares = m.CalculatePositionSize(100000, 0.02, 333)
	assert.Equal(t, 6.0, shares)
	assert.Equal(t, 1998.0, notional)

	notional, shares = m.CalculatePositionSize(0, 0.02, 100)
	assert.Zero(t, notional)
	assert.Zero(t, shares)
}

func TestKellyNonNegativityAndCap(t *testing.T) {
	m, _ := newTestManager()

	for _, winRate := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0} {
		for _, ratio := range []float64{0.1, 0.5, 1, 2, 10} {
			f := m.CalculateKellyFraction(winRate, ratio)
			assert.GreaterOrEqual(t, f, 0.0, "winRate=%v ratio=%v", winRate, ratio)
			assert.LessOrEqual(t, f, m.cfg.KellyCap, "winRate=%v ratio=%v", winRate, ratio)

			if winRate-(1-winRate)/ratio <= 0 {
				assert.Zero(t, f, "negative expectancy must size zero, winRate=%v ratio=%v", winRate, ratio)
			}
		}
	}
}

func TestKellyHalvesAndCaps(t *testing.T) {
	m, _ := newTestManager()

	// Full Kelly 0.6 - 0.4/2 = 0.4; half Kelly 0.2.
	assert.InDelta(t, 0.2, m.CalculateKellyFraction(0.6, 2), 1e-9)

	// Heavily favorable odds hit the cap.
	assert.Equal(t, m.cfg.KellyCap, m.CalculateKellyFraction(0.9, 10))

	assert.Zero(t, m.CalculateKellyFraction(0.5, 0))
	assert.Zero(t, m.CalculateKellyFraction(0.5, -1))
}

func TestKellyFromHistory(t *testing.T) {
	m, _ := newTestManager()

	// 3 wins averaging 200, 2 losses averaging 100: winRate 0.6, ratio 2.
	history := []float64{200, -100, 250, 150, -100, 0}
	assert.InDelta(t, 0.2, m.KellyFromHistory(history), 1e-9)

	// All wins or all losses give no usable ratio.
	assert.Zero(t, m.KellyFromHistory([]float64{100, 50}))
	assert.Zero(t, m.KellyFromHistory([]float64{-100, -50}))
	assert.Zero(t, m.KellyFromHistory(nil))
}

func TestDailyLossTripsBreaker(t *testing.T) {
	m, alerts := newTestManager()

	// 5% daily loss against a 3% limit.
	assert.False(t, m.CanTrade(100000, -5000, nil))
	assert.True(t, m.Tripped())
	assert.Equal(t, "TRIPPED", m.BreakerState())

	require.NotEmpty(t, *alerts)
	assert.Equal(t, "critical", (*alerts)[0].level)
	assert.Contains(t, (*alerts)[0].message, "daily loss")
}

func TestBreakerMonotonicity(t *testing.T) {
	m, _ := newTestManager()

	assert.False(t, m.CanTrade(100000, -5000, nil))

	// Tripped stays tripped for any later inputs the same day.
	assert.False(t, m.CanTrade(100000, 0, nil))
	assert.False(t, m.CanTrade(500000, 10000, nil))

	m.ResetDailyCounters()
	assert.True(t, m.CanTrade(100000, 0, nil))
}

func TestDrawdownTripsBreaker(t *testing.T) {
	m, _ := newTestManager()
	m.metrics.PeakAccountValue = 100000

	assert.False(t, m.CanTrade(89000, 0, nil))
	assert.True(t, m.Tripped())

	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.MaxDrawdownReached, 11.0)
	assert.Contains(t, snap.BreakerReason, "drawdown")
}

func TestPeakIsMonotonic(t *testing.T) {
	m, _ := newTestManager()

	assert.True(t, m.CanTrade(100000, 0, nil))
	assert.Equal(t, 100000.0, m.Snapshot().PeakAccountValue)

	// A small dip neither trips nor lowers the peak.
	assert.True(t, m.CanTrade(95000, 0, nil))
	assert.Equal(t, 100000.0, m.Snapshot().PeakAccountValue)

	assert.True(t, m.CanTrade(120000, 0, nil))
	assert.Equal(t, 120000.0, m.Snapshot().PeakAccountValue)
}

func TestPDTHardBlock(t *testing.T) {
	m, alerts := newTestManager()

	account := &types.AccountSnapshot{Equity: 20000, DaytradeCount: 3}

	// Blocked independent of daily P/L.
	assert.False(t, m.CanTrade(20000, 0, account))
	assert.False(t, m.CanTrade(20000, 5000, account))

	require.NotEmpty(t, *alerts)
	assert.Equal(t, "critical", (*alerts)[0].level)
	assert.Contains(t, (*alerts)[0].message, "PDT")

	// The PDT block is not a breaker trip.
	assert.False(t, m.Tripped())

	// Enough equity lifts the block.
	rich := &types.AccountSnapshot{Equity: 30000, DaytradeCount: 3}
	assert.True(t, m.CanTrade(30000, 0, rich))
}

func TestConsecutiveLossWarningDoesNotBlock(t *testing.T) {
	m, alerts := newTestManager()

	for i := 0; i < 3; i++ {
		m.RecordTradeResult(-100)
	}

	assert.True(t, m.CanTrade(100000, -300, nil))

	var warned bool
	for _, a := range *alerts {
		if a.level == "warning" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRecordTradeResultStreaks(t *testing.T) {
	m, _ := newTestManager()

	m.RecordTradeResult(-100)
	m.RecordTradeResult(-50)
	m.RecordTradeResult(-25)

	snap := m.Snapshot()
	assert.Equal(t, 3, snap.ConsecutiveLosses)
	assert.Equal(t, 3, snap.MaxConsecutiveLosses)
	assert.Equal(t, 3, snap.LosingTrades)
	assert.InDelta(t, -175, snap.DailyPL, 1e-9)

	// A win resets the streak but not the running maximum.
	m.RecordTradeResult(300)
	snap = m.Snapshot()
	assert.Zero(t, snap.ConsecutiveLosses)
	assert.Equal(t, 3, snap.MaxConsecutiveLosses)
	assert.Equal(t, 1, snap.WinningTrades)
	assert.Equal(t, 4, snap.TotalTrades)

	// Breakeven counts the trade, leaves the streak alone.
	m.RecordTradeResult(0)
	snap = m.Snapshot()
	assert.Equal(t, 5, snap.TotalTrades)
	assert.Zero(t, snap.ConsecutiveLosses)
	assert.Equal(t, 1, snap.WinningTrades)
	assert.Equal(t, 3, snap.LosingTrades)
}

func TestResetDailyCountersIdempotent(t *testing.T) {
	m, _ := newTestManager()

	m.RecordTradeResult(-5000)
	assert.False(t, m.CanTrade(100000, -5000, nil))

	m.ResetDailyCounters()
	first := m.Snapshot()

	m.ResetDailyCounters()
	second := m.Snapshot()

	assert.Equal(t, first, second)
	assert.Zero(t, second.DailyPL)
	assert.Zero(t, second.DailyTrades)
	assert.False(t, second.CircuitBreakerTriggered)
	assert.False(t, m.Tripped())

	// All-time counters survive the reset.
	assert.Equal(t, 1, second.TotalTrades)
	assert.Equal(t, 1, second.LosingTrades)
}

func TestValidateTrade(t *testing.T) {
	m, _ := newTestManager()

	res := m.ValidateTrade("AAPL", 2000, 0.5, 100000, types.SideBuy, nil)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)

	// Non-positive amount.
	res = m.ValidateTrade("AAPL", 0, 0.5, 100000, types.SideBuy, nil)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "non-positive")

	// Position cap.
	res = m.ValidateTrade("AAPL", 30000, 0.5, 100000, types.SideBuy, nil)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "cap")

	// PDT short-circuit.
	poor := &types.AccountSnapshot{Equity: 20000, DaytradeCount: 3}
	res = m.ValidateTrade("AAPL", 2000, 0.5, 20000, types.SideBuy, poor)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "PDT")

	// Warnings: weak sentiment and direction mismatch.
	res = m.ValidateTrade("AAPL", 2000, 0.05, 100000, types.SideBuy, nil)
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "weak sentiment")

	res = m.ValidateTrade("AAPL", 2000, -0.5, 100000, types.SideBuy, nil)
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "conflicts")
}

func TestValidateTradeBlockedWhileTripped(t *testing.T) {
	m, _ := newTestManager()

	assert.False(t, m.CanTrade(100000, -5000, nil))

	res := m.ValidateTrade("AAPL", 2000, 0.5, 100000, types.SideBuy, nil)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "circuit breaker")
}

func TestBreakerStateSurvivesRestart(t *testing.T) {
	m, _ := newTestManager()
	assert.False(t, m.CanTrade(100000, -5000, nil))

	persisted := m.Snapshot()

	// A new manager loaded from the persisted metrics is still latched.
	restored := NewManager(DefaultConfig(), &persisted)
	assert.True(t, restored.Tripped())
	assert.False(t, restored.CanTrade(100000, 0, nil))
}
