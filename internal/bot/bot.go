// Package bot runs the trading cycle: staleness-gate the inputs, check
// the liquidation tiers, then feed candidates through the decision
// funnel. One cycle runs to completion before the next starts.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/ducminhle1904/risk-funnel-bot/internal/broker"
	funnelerrors "github.com/ducminhle1904/risk-funnel-bot/internal/errors"
	"github.com/ducminhle1904/risk-funnel-bot/internal/journal"
	"github.com/ducminhle1904/risk-funnel-bot/internal/liquidator"
	"github.com/ducminhle1904/risk-funnel-bot/internal/logger"
	"github.com/ducminhle1904/risk-funnel-bot/internal/monitoring"
	"github.com/ducminhle1904/risk-funnel-bot/internal/notifications"
	"github.com/ducminhle1904/risk-funnel-bot/internal/pipeline"
	"github.com/ducminhle1904/risk-funnel-bot/internal/risk"
	"github.com/ducminhle1904/risk-funnel-bot/internal/staleness"
	"github.com/ducminhle1904/risk-funnel-bot/internal/state"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// Deps are the wired collaborators of a Bot. All fields are required
// except Journal and Notifier.
type Deps struct {
	Logger      *logger.Logger
	Notifier    notifications.Notifier
	Broker      broker.Broker
	Source      CandidateSource
	RiskManager *risk.Manager
	Liquidator  *liquidator.Liquidator
	Pipeline    *pipeline.Pipeline
	Budget      *pipeline.BudgetController
	Guard       *staleness.Guard
	Persistence *state.Persistence
	Journal     *journal.SQLite
	Health      *monitoring.HealthChecker
}

// Config is the bot's cycle configuration.
type Config struct {
	Symbols          []string
	CycleInterval    time.Duration
	AccountMaxAge    time.Duration
	MarketDataMaxAge time.Duration
	StateMaxAge      time.Duration
}

// Bot orchestrates one funnel cycle at a time.
type Bot struct {
	cfg  Config
	deps Deps

	cycleCount int
}

// New wires a Bot and installs the alert fan-out on the risk manager
// and liquidator.
func New(cfg Config, deps Deps) (*Bot, error) {
	if deps.Logger == nil || deps.Broker == nil || deps.Source == nil ||
		deps.RiskManager == nil || deps.Liquidator == nil || deps.Pipeline == nil ||
		deps.Budget == nil || deps.Guard == nil || deps.Persistence == nil || deps.Health == nil {
		return nil, fmt.Errorf("bot is missing required dependencies")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NoopNotifier{}
	}

	b := &Bot{cfg: cfg, deps: deps}

	deps.RiskManager.SetAlertFunc(b.alert)
	deps.Liquidator.SetAlertFunc(b.alert)
	deps.Liquidator.SetRecordFunc(deps.RiskManager.RecordTradeResult)

	return b, nil
}

// Run executes cycles on the configured interval until ctx is canceled.
// Cycles never overlap; a slow cycle delays the next tick.
func (b *Bot) Run(ctx context.Context) error {
	b.deps.Logger.Info("Starting funnel bot: %d symbols, cycle every %s", len(b.cfg.Symbols), b.cfg.CycleInterval)

	// First cycle immediately, then on the ticker.
	if err := b.RunCycle(ctx); err != nil {
		b.deps.Logger.LogError("cycle", err)
	}

	ticker := time.NewTicker(b.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.deps.Logger.Info("Shutdown requested, stopping after current cycle")
			return b.shutdown()
		case <-ticker.C:
			if err := b.RunCycle(ctx); err != nil {
				b.deps.Logger.LogError("cycle", err)
			}
		}
	}
}

// RunCycle executes one full cycle. A stale critical input aborts the
// cycle before any side effect; other errors abort the remainder of the
// cycle but leave completed steps in place.
func (b *Bot) RunCycle(ctx context.Context) error {
	b.cycleCount++

	if b.deps.RiskManager.MaybeResetDaily() {
		b.deps.Logger.Info("Daily counters reset, circuit breaker re-armed")
		b.deps.Persistence.AppendNote("daily reset, breaker re-armed")
	}

	snapshot, err := b.deps.Broker.GetAccountSnapshot(ctx)
	if err != nil {
		return b.cycleError("GetAccountSnapshot", err)
	}
	b.deps.Health.SetConnected(true)

	positions, err := b.deps.Broker.GetPositions(ctx)
	if err != nil {
		return b.cycleError("GetPositions", err)
	}

	candidates, marketAsOf, err := b.deps.Source.Candidates(ctx, b.cfg.Symbols)
	if err != nil {
		return b.cycleError("Candidates", err)
	}

	// Staleness gate: fail closed before any trading side effect.
	check, err := b.deps.Guard.Check([]staleness.Source{
		{
			Name:        "account snapshot",
			AsOf:        snapshot.AsOf,
			MaxAge:      b.cfg.AccountMaxAge,
			Critical:    true,
			Remediation: "check broker connectivity and credentials",
		},
		{
			Name:        "market data",
			AsOf:        marketAsOf,
			MaxAge:      b.cfg.MarketDataMaxAge,
			Critical:    true,
			Remediation: "check quote feed",
		},
		{
			Name:   "persisted state",
			AsOf:   b.deps.Persistence.LastUpdated(),
			MaxAge: b.cfg.StateMaxAge,
		},
	})
	if err != nil {
		b.alert("critical", err.Error())
		return b.cycleError("StalenessCheck", err)
	}
	for _, warning := range check.Warnings {
		b.deps.Logger.Warning("%s", warning)
	}

	b.checkLiquidation(ctx, snapshot, positions)

	// CanTrade both gates this cycle and advances the breaker state
	// (daily loss, drawdown, peak tracking).
	passed, rejected, skipped := 0, 0, 0
	if b.deps.RiskManager.CanTrade(snapshot.Equity, b.deps.RiskManager.DailyPL(), &snapshot) {
		passed, rejected, skipped = b.runFunnel(ctx, candidates, snapshot)
	} else {
		b.deps.Logger.Warning("Trading halted (%s), skipping funnel for %d candidates",
			b.deps.RiskManager.BreakerState(), len(candidates))
		skipped = len(candidates)
	}

	b.publishMetrics()

	b.deps.Persistence.SetMetrics(b.deps.RiskManager.Snapshot())
	if err := b.deps.Persistence.Save(); err != nil {
		return b.cycleError("Save", err)
	}

	b.deps.Health.CycleCompleted()
	b.deps.Logger.LogCycleSummary(b.cycleCount, len(candidates), passed, rejected, skipped,
		b.deps.RiskManager.DailyPL(), b.deps.RiskManager.BreakerState())

	return nil
}

// checkLiquidation runs the tiered liquidation check and records the
// audit event on every stream.
func (b *Bot) checkLiquidation(ctx context.Context, snapshot types.AccountSnapshot, positions []types.Position) {
	event := b.deps.Liquidator.CheckAndLiquidate(ctx, snapshot.Equity, b.deps.RiskManager.DailyPL(), positions)

	b.deps.Persistence.LogLiquidation(event)
	if b.deps.Journal != nil {
		if err := b.deps.Journal.RecordLiquidation(event); err != nil {
			b.deps.Logger.LogError("journal.RecordLiquidation", err)
		}
	}

	if event.Trigger == liquidator.TriggerNone {
		return
	}

	monitoring.RecordLiquidation(event.Trigger)
	b.deps.Logger.LogLiquidation(event.Trigger, event.LossPct, event.LiquidatedSymbols, event.PreservedSymbols, event.FailedSymbols)
	b.deps.Persistence.AppendNote("liquidation %s: closed %d, preserved %d, failed %d",
		event.Trigger, len(event.LiquidatedSymbols), len(event.PreservedSymbols), len(event.FailedSymbols))
}

// runFunnel evaluates every candidate and returns pass/reject/skip
// counts for the cycle summary.
func (b *Bot) runFunnel(ctx context.Context, candidates []pipeline.Candidate, snapshot types.AccountSnapshot) (passed, rejected, skipped int) {
	for _, cand := range candidates {
		result := b.deps.Pipeline.Evaluate(ctx, cand, snapshot)

		switch result.Outcome {
		case types.OutcomePass:
			passed++
			if result.Fill != nil {
				fill := result.Fill
				monitoring.RecordTrade(fill.Symbol, string(fill.Side), fill.Notional)
				b.deps.Logger.LogTradeExecution(fill.Symbol, string(fill.Side), fill.OrderID,
					fill.FilledQty, fill.FilledPrice, fill.Notional)
			}
		case types.OutcomeReject:
			rejected++
		default:
			skipped++
		}
	}
	return passed, rejected, skipped
}

// publishMetrics pushes the cycle-end gauges.
func (b *Bot) publishMetrics() {
	metrics := b.deps.RiskManager.Snapshot()
	monitoring.UpdateDailyPL(metrics.DailyPL)
	monitoring.UpdateDrawdown(metrics.MaxDrawdownReached)
	monitoring.UpdateBreakerState(metrics.CircuitBreakerTriggered)
	monitoring.UpdateSentimentSpend(b.deps.Budget.Spent())
}

// alert fans one alert out to the log and the notifier.
func (b *Bot) alert(level, message string) {
	switch level {
	case "critical":
		b.deps.Logger.Critical("%s", message)
	case "warning":
		b.deps.Logger.Warning("%s", message)
	default:
		b.deps.Logger.Error("%s", message)
	}

	if err := b.deps.Notifier.SendAlert(level, message); err != nil {
		b.deps.Logger.Error("Failed to send alert: %v", err)
	}
}

func (b *Bot) cycleError(operation string, err error) error {
	categorized := funnelerrors.Categorize(err, "bot", operation)
	monitoring.RecordError(string(categorized.Category))
	b.deps.Health.RecordError(categorized.Error())
	return categorized
}

// shutdown persists the final state.
func (b *Bot) shutdown() error {
	b.deps.Persistence.SetMetrics(b.deps.RiskManager.Snapshot())
	if err := b.deps.Persistence.Close(); err != nil {
		return fmt.Errorf("failed to persist state on shutdown: %w", err)
	}
	b.deps.Logger.Info("Final state persisted, bot stopped")
	return nil
}
