package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/risk-funnel-bot/internal/broker"
	"github.com/ducminhle1904/risk-funnel-bot/internal/risk"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

type fakeScorer struct {
	score float64
	cost  float64
	err   error
	calls int
}

func (f *fakeScorer) Score(ctx context.Context, symbol, marketContext string) (broker.SentimentResult, error) {
	f.calls++
	if f.err != nil {
		return broker.SentimentResult{}, f.err
	}
	return broker.SentimentResult{Score: f.score, Cost: f.cost}, nil
}

type fixture struct {
	pipeline *Pipeline
	broker   *broker.PaperBroker
	riskMgr  *risk.Manager
	budget   *BudgetController
	scorer   *fakeScorer
	account  types.AccountSnapshot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pb := broker.NewPaperBroker(100000)
	pb.SetMark("AAPL", 200)

	riskMgr := risk.NewManager(risk.DefaultConfig(), risk.NewMetrics())
	budget := NewBudgetController(5.0)
	scorer := &fakeScorer{score: 0.4, cost: 0.02}

	p := New(DefaultConfig(), budget, scorer, riskMgr, pb, nil)

	return &fixture{
		pipeline: p,
		broker:   pb,
		riskMgr:  riskMgr,
		budget:   budget,
		scorer:   scorer,
		account:  types.AccountSnapshot{Equity: 100000, Cash: 100000},
	}
}

func goodCandidate() Candidate {
	return Candidate{
		Symbol:         "AAPL",
		Side:           types.SideBuy,
		SignalStrength: 0.8,
		Confidence:     0.9,
		Price:          200,
	}
}

func gates(decisions []types.GateDecision) []string {
	out := make([]string, len(decisions))
	for i, d := range decisions {
		out[i] = d.Gate
	}
	return out
}

func TestHappyPathRunsAllGates(t *testing.T) {
	f := newFixture(t)

	result := f.pipeline.Evaluate(context.Background(), goodCandidate(), f.account)

	assert.Equal(t, types.OutcomePass, result.Outcome)
	assert.Equal(t, []string{GateSignal, GateFilter, GateSentiment, GateSizing, GateExecution}, gates(result.Decisions))
	for _, d := range result.Decisions {
		assert.NotEmpty(t, d.ID)
		assert.Equal(t, "AAPL", d.Symbol)
	}

	require.NotNil(t, result.Proposal)
	assert.Equal(t, 0.4, result.Proposal.SentimentScore)
	require.NotNil(t, result.Fill)
	assert.NotEmpty(t, result.Fill.OrderID)

	// The executed open counted as one trade with zero realized P/L.
	snap := f.riskMgr.Snapshot()
	assert.Equal(t, 1, snap.TotalTrades)
	assert.Equal(t, 1, snap.DailyTrades)

	// Spend was charged after the successful call.
	assert.InDelta(t, 0.02, f.budget.Spent(), 1e-9)
}

func TestSignalRejectShortCircuits(t *testing.T) {
	f := newFixture(t)

	cand := goodCandidate()
	cand.SignalStrength = 0.2

	result := f.pipeline.Evaluate(context.Background(), cand, f.account)

	assert.Equal(t, types.OutcomeReject, result.Outcome)
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, GateSignal, result.Decisions[0].Gate)
	assert.Equal(t, types.OutcomeReject, result.Decisions[0].Outcome)
	assert.NotEmpty(t, result.Decisions[0].Reason)

	// No downstream effects at all.
	assert.Zero(t, f.scorer.calls)
	assert.Zero(t, f.riskMgr.Snapshot().TotalTrades)
	assert.Nil(t, result.Proposal)
}

func TestFilterReject(t *testing.T) {
	f := newFixture(t)

	cand := goodCandidate()
	cand.Confidence = 0.3

	result := f.pipeline.Evaluate(context.Background(), cand, f.account)

	assert.Equal(t, types.OutcomeReject, result.Outcome)
	assert.Equal(t, []string{GateSignal, GateFilter}, gates(result.Decisions))
	assert.Zero(t, f.scorer.calls)
}

func TestSentimentRejectOnNegativeScore(t *testing.T) {
	f := newFixture(t)
	f.scorer.score = -0.5

	result := f.pipeline.Evaluate(context.Background(), goodCandidate(), f.account)

	assert.Equal(t, types.OutcomeReject, result.Outcome)
	assert.Equal(t, []string{GateSignal, GateFilter, GateSentiment}, gates(result.Decisions))

	last := result.Decisions[len(result.Decisions)-1]
	assert.Equal(t, types.OutcomeReject, last.Outcome)
	evidence, ok := last.Payload.(types.SentimentEvidence)
	require.True(t, ok)
	assert.Equal(t, -0.5, evidence.Score)
	assert.Equal(t, "scored", evidence.Source)

	// The rejecting call still cost money.
	assert.InDelta(t, 0.02, f.budget.Spent(), 1e-9)
}

func TestSentimentSkipWhenBudgetExhausted(t *testing.T) {
	f := newFixture(t)
	f.budget.RecordSpend(5.0)

	result := f.pipeline.Evaluate(context.Background(), goodCandidate(), f.account)

	// Skip is not a reject: the funnel proceeds on neutral sentiment.
	assert.Equal(t, types.OutcomePass, result.Outcome)

	sentimentDecision := result.Decisions[2]
	assert.Equal(t, GateSentiment, sentimentDecision.Gate)
	assert.Equal(t, types.OutcomeSkipped, sentimentDecision.Outcome)
	evidence := sentimentDecision.Payload.(types.SentimentEvidence)
	assert.Equal(t, "neutral-skip", evidence.Source)

	assert.Zero(t, f.scorer.calls)
	require.NotNil(t, result.Proposal)
	assert.Zero(t, result.Proposal.SentimentScore)
}

func TestSentimentFailsOpenOnTransportError(t *testing.T) {
	f := newFixture(t)
	f.scorer.err = errors.New("connection reset")

	result := f.pipeline.Evaluate(context.Background(), goodCandidate(), f.account)

	assert.Equal(t, types.OutcomePass, result.Outcome)

	sentimentDecision := result.Decisions[2]
	assert.Equal(t, types.OutcomeError, sentimentDecision.Outcome)
	evidence := sentimentDecision.Payload.(types.SentimentEvidence)
	assert.Equal(t, "neutral-error", evidence.Source)

	// Failed calls are not charged.
	assert.Zero(t, f.budget.Spent())
}

func TestTrippedBreakerRejectsAtSizingGate(t *testing.T) {
	f := newFixture(t)

	// Trip via daily loss.
	assert.False(t, f.riskMgr.CanTrade(100000, -5000, nil))

	result := f.pipeline.Evaluate(context.Background(), goodCandidate(), f.account)

	assert.Equal(t, types.OutcomeReject, result.Outcome)
	assert.Equal(t, []string{GateSignal, GateFilter, GateSentiment, GateSizing}, gates(result.Decisions))

	last := result.Decisions[len(result.Decisions)-1]
	assert.Contains(t, last.Reason, "circuit breaker or PDT")
	assert.Nil(t, result.Fill)
}

func TestExecutionFailureIsErrorNotReject(t *testing.T) {
	f := newFixture(t)
	// No mark for MSFT: submission fails.
	cand := goodCandidate()
	cand.Symbol = "MSFT"
	cand.Price = 400

	result := f.pipeline.Evaluate(context.Background(), cand, f.account)

	assert.Equal(t, types.OutcomeError, result.Outcome)
	last := result.Decisions[len(result.Decisions)-1]
	assert.Equal(t, GateExecution, last.Gate)
	assert.Equal(t, types.OutcomeError, last.Outcome)

	// No trade recorded when execution failed.
	assert.Zero(t, f.riskMgr.Snapshot().TotalTrades)
}

func TestSinkReceivesEveryDecision(t *testing.T) {
	f := newFixture(t)

	var seen []types.GateDecision
	f.pipeline.sink = SinkFunc(func(d types.GateDecision) { seen = append(seen, d) })

	result := f.pipeline.Evaluate(context.Background(), goodCandidate(), f.account)

	assert.Equal(t, len(result.Decisions), len(seen))
}

func TestKellySizingUsedWhenHistoryExists(t *testing.T) {
	f := newFixture(t)

	cfg := DefaultConfig()
	cfg.UseKelly = true
	f.pipeline = New(cfg, f.budget, f.scorer, f.riskMgr, f.broker, nil)

	// 3 wins of 200, 2 losses of 100: half Kelly = 0.2.
	for _, pl := range []float64{200, 200, 200, -100, -100} {
		f.riskMgr.RecordTradeResult(pl)
	}

	result := f.pipeline.Evaluate(context.Background(), goodCandidate(), f.account)
	require.Equal(t, types.OutcomePass, result.Outcome)

	var sizing types.SizingEvidence
	for _, d := range result.Decisions {
		if d.Gate == GateSizing {
			sizing = d.Payload.(types.SizingEvidence)
		}
	}
	assert.InDelta(t, 0.2, sizing.RiskPct, 1e-9)
}
