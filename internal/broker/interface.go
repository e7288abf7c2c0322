package broker

import (
	"context"

	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// AccountProvider is the account-state boundary. Snapshots and positions
// are fetched fresh every cycle; their AsOf timestamps feed the
// staleness guard.
type AccountProvider interface {
	GetAccountSnapshot(ctx context.Context) (types.AccountSnapshot, error)
	GetPositions(ctx context.Context) ([]types.Position, error)
}

// Executor is the order-execution boundary.
type Executor interface {
	// SubmitOrder submits a market order for the given notional value.
	SubmitOrder(ctx context.Context, symbol string, side types.Side, notional float64) (types.Fill, error)
	// ClosePosition fully closes the open position in symbol.
	ClosePosition(ctx context.Context, symbol string) (types.Fill, error)
}

// MarketData is the quote boundary. The signal source samples it once
// per cycle; Ticker.Timestamp feeds the staleness guard.
type MarketData interface {
	GetTicker(ctx context.Context, symbol string) (types.Ticker, error)
}

// Broker combines the boundaries; the paper and bybit implementations
// satisfy it.
type Broker interface {
	AccountProvider
	Executor
	MarketData
}

// SentimentResult is the outcome of one scoring call.
type SentimentResult struct {
	Score float64 // in [-1, 1]
	Cost  float64 // dollars charged for this call
}

// SentimentScorer is the sentiment boundary. Implementations are
// expected to be slow and metered; the pipeline budgets calls to it.
type SentimentScorer interface {
	Score(ctx context.Context, symbol string, marketContext string) (SentimentResult, error)
}
