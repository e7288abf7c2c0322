// Package pipeline runs the decision funnel: a fixed gate sequence per
// candidate, cheapest first, short-circuiting on the first rejection so
// expensive calls only happen for instruments that survive the free
// checks.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ducminhle1904/risk-funnel-bot/internal/broker"
	"github.com/ducminhle1904/risk-funnel-bot/internal/risk"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/id"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// Gate names, in execution order.
const (
	GateSignal    = "signal"
	GateFilter    = "filter"
	GateSentiment = "sentiment"
	GateSizing    = "sizing"
	GateExecution = "execution"
)

// Candidate is one instrument entering the funnel, with its
// precomputed signal inputs.
type Candidate struct {
	Symbol         string
	Side           types.Side
	SignalStrength float64
	Confidence     float64
	Price          float64
	MarketContext  string
}

// Config holds the gate thresholds.
type Config struct {
	SignalThreshold      float64
	FilterThreshold      float64
	SentimentRejectBelow float64
	NeutralSentiment     float64
	RiskPerTradePct      float64
	UseKelly             bool
	SentimentEstimate    float64 // estimated cost of one scoring call
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		SignalThreshold:      0.5,
		FilterThreshold:      0.6,
		SentimentRejectBelow: -0.2,
		NeutralSentiment:     0.0,
		RiskPerTradePct:      0.02,
		SentimentEstimate:    0.02,
	}
}

// Result is the funnel outcome for one candidate.
type Result struct {
	Outcome   types.GateOutcome
	Decisions []types.GateDecision
	Proposal  *types.TradeProposal
	Fill      *types.Fill
}

// Pipeline evaluates candidates through the gate sequence.
type Pipeline struct {
	cfg      Config
	budget   *BudgetController
	scorer   broker.SentimentScorer
	riskMgr  *risk.Manager
	executor broker.Executor
	sink     Sink
	now      func() time.Time
}

// New creates a Pipeline. A nil sink discards telemetry; a nil scorer
// makes the sentiment gate behave as permanently out of budget.
func New(cfg Config, budget *BudgetController, scorer broker.SentimentScorer, riskMgr *risk.Manager, executor broker.Executor, sink Sink) *Pipeline {
	if sink == nil {
		sink = SinkFunc(func(types.GateDecision) {})
	}
	return &Pipeline{
		cfg:      cfg,
		budget:   budget,
		scorer:   scorer,
		riskMgr:  riskMgr,
		executor: executor,
		sink:     sink,
		now:      time.Now,
	}
}

// Evaluate runs one candidate through the funnel against the given
// account snapshot. Exactly one GateDecision is emitted per gate
// transition; a rejection emits no downstream records.
func (p *Pipeline) Evaluate(ctx context.Context, cand Candidate, account types.AccountSnapshot) Result {
	var result Result

	// 1. Signal gate: deterministic and free, always runs.
	if cand.SignalStrength < p.cfg.SignalThreshold {
		p.emit(&result, cand.Symbol, GateSignal, types.OutcomeReject,
			fmt.Sprintf("signal strength %.2f below %.2f", cand.SignalStrength, p.cfg.SignalThreshold),
			types.SignalEvidence{Strength: cand.SignalStrength, Threshold: p.cfg.SignalThreshold})
		result.Outcome = types.OutcomeReject
		return result
	}
	p.emit(&result, cand.Symbol, GateSignal, types.OutcomePass, "",
		types.SignalEvidence{Strength: cand.SignalStrength, Threshold: p.cfg.SignalThreshold})

	// 2. Statistical filter gate: local, no external cost.
	if cand.Confidence < p.cfg.FilterThreshold {
		p.emit(&result, cand.Symbol, GateFilter, types.OutcomeReject,
			fmt.Sprintf("confidence %.2f below %.2f", cand.Confidence, p.cfg.FilterThreshold),
			types.FilterEvidence{Confidence: cand.Confidence, Threshold: p.cfg.FilterThreshold})
		result.Outcome = types.OutcomeReject
		return result
	}
	p.emit(&result, cand.Symbol, GateFilter, types.OutcomePass, "",
		types.FilterEvidence{Confidence: cand.Confidence, Threshold: p.cfg.FilterThreshold})

	// 3. Sentiment gate: budgeted; skips to neutral when out of budget,
	// fails open to neutral on transport error.
	sentiment, rejected := p.sentimentGate(ctx, &result, cand)
	if rejected {
		result.Outcome = types.OutcomeReject
		return result
	}

	// 4. Risk-sizing gate.
	proposal, rejected := p.sizingGate(&result, cand, account, sentiment)
	if rejected {
		result.Outcome = types.OutcomeReject
		return result
	}
	result.Proposal = proposal

	// 5. Execution.
	fill, ok := p.executionGate(ctx, &result, proposal)
	if !ok {
		result.Outcome = types.OutcomeError
		return result
	}
	result.Fill = fill
	result.Outcome = types.OutcomePass
	return result
}

// sentimentGate resolves the sentiment score for the candidate. The
// bool return is true when the candidate is rejected on negative
// sentiment.
func (p *Pipeline) sentimentGate(ctx context.Context, result *Result, cand Candidate) (float64, bool) {
	if p.scorer == nil || p.budget == nil || !p.canAfford() {
		p.emit(result, cand.Symbol, GateSentiment, types.OutcomeSkipped,
			"sentiment budget exhausted, using neutral default",
			types.SentimentEvidence{
				Score:     p.cfg.NeutralSentiment,
				Threshold: p.cfg.SentimentRejectBelow,
				Source:    "neutral-skip",
			})
		return p.cfg.NeutralSentiment, false
	}

	scored, err := p.scorer.Score(ctx, cand.Symbol, cand.MarketContext)
	if err != nil {
		// Documented behavior: fail open to neutral on transport error
		// rather than halting the funnel.
		p.emit(result, cand.Symbol, GateSentiment, types.OutcomeError,
			fmt.Sprintf("sentiment call failed, using neutral default: %v", err),
			types.SentimentEvidence{
				Score:     p.cfg.NeutralSentiment,
				Threshold: p.cfg.SentimentRejectBelow,
				Source:    "neutral-error",
			})
		return p.cfg.NeutralSentiment, false
	}

	p.budget.RecordSpend(scored.Cost)

	evidence := types.SentimentEvidence{
		Score:     scored.Score,
		Threshold: p.cfg.SentimentRejectBelow,
		Cost:      scored.Cost,
		Source:    "scored",
	}

	if scored.Score < p.cfg.SentimentRejectBelow {
		p.emit(result, cand.Symbol, GateSentiment, types.OutcomeReject,
			fmt.Sprintf("sentiment %.2f below %.2f", scored.Score, p.cfg.SentimentRejectBelow), evidence)
		return scored.Score, true
	}

	p.emit(result, cand.Symbol, GateSentiment, types.OutcomePass, "", evidence)
	return scored.Score, false
}

// sizingGate delegates to the risk manager. The bool return is true on
// rejection.
func (p *Pipeline) sizingGate(result *Result, cand Candidate, account types.AccountSnapshot, sentiment float64) (*types.TradeProposal, bool) {
	if !p.riskMgr.CanTrade(account.Equity, p.riskMgr.DailyPL(), &account) {
		p.emit(result, cand.Symbol, GateSizing, types.OutcomeReject,
			"risk manager blocked trading (circuit breaker or PDT)",
			types.SizingEvidence{})
		return nil, true
	}

	fraction := p.cfg.RiskPerTradePct
	if p.cfg.UseKelly {
		if kelly := p.riskMgr.KellyFraction(); kelly > 0 {
			fraction = kelly
		}
	}

	notional, shares := p.riskMgr.CalculatePositionSize(account.Equity, fraction, cand.Price)
	if notional <= 0 {
		p.emit(result, cand.Symbol, GateSizing, types.OutcomeReject,
			"computed position size is zero",
			types.SizingEvidence{Notional: notional, Shares: shares, RiskPct: fraction})
		return nil, true
	}

	validation := p.riskMgr.ValidateTrade(cand.Symbol, notional, sentiment, account.Equity, cand.Side, &account)
	if !validation.Valid {
		p.emit(result, cand.Symbol, GateSizing, types.OutcomeReject, validation.Reason,
			types.SizingEvidence{Notional: notional, Shares: shares, RiskPct: fraction})
		return nil, true
	}

	reason := ""
	if len(validation.Warnings) > 0 {
		reason = "warnings: " + joinWarnings(validation.Warnings)
	}

	p.emit(result, cand.Symbol, GateSizing, types.OutcomePass, reason,
		types.SizingEvidence{Notional: notional, Shares: shares, RiskPct: fraction})

	return &types.TradeProposal{
		Symbol:         cand.Symbol,
		Side:           cand.Side,
		Notional:       notional,
		Shares:         shares,
		SignalStrength: cand.SignalStrength,
		Confidence:     cand.Confidence,
		SentimentScore: sentiment,
	}, false
}

// executionGate submits the sized order. Failure is terminal for this
// candidate's trade this cycle; the cycle continues for others.
func (p *Pipeline) executionGate(ctx context.Context, result *Result, proposal *types.TradeProposal) (*types.Fill, bool) {
	fill, err := p.executor.SubmitOrder(ctx, proposal.Symbol, proposal.Side, proposal.Notional)
	if err != nil {
		p.emit(result, proposal.Symbol, GateExecution, types.OutcomeError,
			fmt.Sprintf("order submission failed: %v", err),
			types.ExecutionEvidence{})
		return nil, false
	}

	p.riskMgr.RecordTradeResult(fill.RealizedPL)

	p.emit(result, proposal.Symbol, GateExecution, types.OutcomePass, "",
		types.ExecutionEvidence{
			OrderID:     fill.OrderID,
			FilledQty:   fill.FilledQty,
			FilledPrice: fill.FilledPrice,
		})
	return &fill, true
}

func (p *Pipeline) canAfford() bool {
	return p.budget.CanAfford(p.cfg.SentimentEstimate)
}

func (p *Pipeline) emit(result *Result, symbol, gate string, outcome types.GateOutcome, reason string, payload types.GatePayload) {
	decision := types.GateDecision{
		ID:        id.New(),
		Gate:      gate,
		Symbol:    symbol,
		Outcome:   outcome,
		Reason:    reason,
		Payload:   payload,
		Timestamp: p.now(),
	}
	result.Decisions = append(result.Decisions, decision)
	p.sink.Emit(decision)
}

func joinWarnings(warnings []string) string {
	out := ""
	for i, w := range warnings {
		if i > 0 {
			out += "; "
		}
		out += w
	}
	return out
}
