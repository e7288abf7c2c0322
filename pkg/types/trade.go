package types

import "time"

// Side represents the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeProposal is the candidate trade that survives the decision funnel.
// It is constructed by the pipeline, validated and sized by the risk
// manager, and discarded after the cycle unless it executes.
type TradeProposal struct {
	Symbol         string  `json:"symbol"`
	Side           Side    `json:"side"`
	Notional       float64 `json:"notional"`
	Shares         float64 `json:"shares"`
	SignalStrength float64 `json:"signal_strength"`
	Confidence     float64 `json:"confidence"`
	SentimentScore float64 `json:"sentiment_score"`
}

// Fill is the result of a submitted order at the execution boundary.
// RealizedPL is non-zero only for closing fills.
type Fill struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	FilledQty   float64   `json:"filled_qty"`
	FilledPrice float64   `json:"filled_price"`
	Notional    float64   `json:"notional"`
	RealizedPL  float64   `json:"realized_pl"`
	Timestamp   time.Time `json:"timestamp"`
}
