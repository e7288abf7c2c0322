// Package liquidator unwinds open positions when a single day's loss
// crosses hard thresholds. The circuit breaker only blocks new trades;
// this component closes existing ones.
package liquidator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/risk-funnel-bot/internal/broker"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/id"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// Trigger tiers for liquidation events.
const (
	TriggerNone    = "none"
	TriggerPartial = "partial"
	TriggerFull    = "full"
)

// Config holds the liquidation thresholds as fractions of portfolio
// value.
type Config struct {
	AutoLiquidatePct float64  // partial tier, default 0.03
	FullLiquidatePct float64  // full tier, default 0.05
	SafeHavens       []string // preserved in the partial tier
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		AutoLiquidatePct: 0.03,
		FullLiquidatePct: 0.05,
		SafeHavens:       []string{"BIL", "SGOV", "SHV"},
	}
}

// AlertFunc receives liquidation alerts for logging and notification.
type AlertFunc func(level, message string)

// RecordFunc receives the realized P/L of each successful close, wired
// to the risk manager's trade bookkeeping.
type RecordFunc func(profitLoss float64)

// Liquidator evaluates the loss tiers each cycle and closes positions
// best-effort. Closes are deduped by symbol and day so a retried cycle
// cannot double-submit against a broker that is not idempotent.
type Liquidator struct {
	cfg      Config
	executor broker.Executor
	onAlert  AlertFunc
	record   RecordFunc
	now      func() time.Time

	safeHavens  map[string]bool
	closedOnDay map[string]string // symbol -> YYYY-MM-DD of last submitted close
}

// New creates a Liquidator over the execution boundary.
func New(cfg Config, executor broker.Executor) *Liquidator {
	havens := make(map[string]bool, len(cfg.SafeHavens))
	for _, s := range cfg.SafeHavens {
		havens[s] = true
	}

	return &Liquidator{
		cfg:         cfg,
		executor:    executor,
		onAlert:     func(level, message string) {},
		record:      func(profitLoss float64) {},
		now:         time.Now,
		safeHavens:  havens,
		closedOnDay: make(map[string]string),
	}
}

// SetAlertFunc installs the alert sink.
func (l *Liquidator) SetAlertFunc(fn AlertFunc) {
	if fn != nil {
		l.onAlert = fn
	}
}

// SetRecordFunc installs the realized-P/L hook.
func (l *Liquidator) SetRecordFunc(fn RecordFunc) {
	if fn != nil {
		l.record = fn
	}
}

// SetClock overrides the time source, for tests.
func (l *Liquidator) SetClock(now func() time.Time) {
	l.now = now
}

// CheckAndLiquidate evaluates the day's loss against the tiers and
// closes positions accordingly. Every invocation returns an audit
// event, action or not. Individual close failures are reported in
// FailedSymbols and do not abort the remaining closes.
func (l *Liquidator) CheckAndLiquidate(ctx context.Context, portfolioValue, plToday float64, positions []types.Position) types.LiquidationEvent {
	event := types.LiquidationEvent{
		ID:                id.New(),
		Trigger:           TriggerNone,
		Severity:          types.SeverityNone,
		LiquidatedSymbols: []string{},
		PreservedSymbols:  []string{},
		Timestamp:         l.now(),
	}

	if plToday >= 0 || portfolioValue <= 0 {
		event.Note = "no loss, no action"
		return event
	}

	lossPct := -plToday / portfolioValue
	event.LossPct = lossPct

	switch {
	case lossPct >= l.cfg.FullLiquidatePct:
		event.Trigger = TriggerFull
		event.Severity = types.SeverityCritical
		l.onAlert("critical", fmt.Sprintf(
			"FULL liquidation: daily loss %.2f%% breached %.2f%% threshold, closing all %d positions",
			lossPct*100, l.cfg.FullLiquidatePct*100, len(positions)))

		l.closeAll(ctx, positions, nil, &event)

	case lossPct >= l.cfg.AutoLiquidatePct:
		event.Trigger = TriggerPartial
		event.Severity = types.SeverityWarning
		l.onAlert("warning", fmt.Sprintf(
			"partial liquidation: daily loss %.2f%% breached %.2f%% threshold, preserving safe havens",
			lossPct*100, l.cfg.AutoLiquidatePct*100))

		l.closeAll(ctx, positions, l.safeHavens, &event)

	default:
		distance := (l.cfg.AutoLiquidatePct - lossPct) * 100
		event.Note = fmt.Sprintf("loss %.2f%%, %.2f%% points below the partial threshold", lossPct*100, distance)
	}

	return event
}

// closeAll submits closes for every position not in preserve,
// best-effort. Preserved symbols are recorded on the event.
func (l *Liquidator) closeAll(ctx context.Context, positions []types.Position, preserve map[string]bool, event *types.LiquidationEvent) {
	today := l.now().Format("2006-01-02")

	for _, pos := range positions {
		if pos.Quantity == 0 {
			continue
		}

		if preserve[pos.Symbol] {
			event.PreservedSymbols = append(event.PreservedSymbols, pos.Symbol)
			continue
		}

		if l.closedOnDay[pos.Symbol] == today {
			// Already submitted today; a retried cycle must not
			// double-close.
			event.LiquidatedSymbols = append(event.LiquidatedSymbols, pos.Symbol)
			continue
		}

		fill, err := l.executor.ClosePosition(ctx, pos.Symbol)
		if err != nil {
			event.FailedSymbols = append(event.FailedSymbols, pos.Symbol)
			l.onAlert("error", fmt.Sprintf("failed to close %s: %v", pos.Symbol, err))
			continue
		}

		l.closedOnDay[pos.Symbol] = today
		event.LiquidatedSymbols = append(event.LiquidatedSymbols, pos.Symbol)
		l.record(fill.RealizedPL)
	}

	sort.Strings(event.LiquidatedSymbols)
	sort.Strings(event.PreservedSymbols)
	sort.Strings(event.FailedSymbols)
}
