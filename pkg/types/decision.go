package types

import (
	"encoding/json"
	"time"
)

// GateOutcome is the result of one gate evaluating one instrument.
type GateOutcome string

const (
	OutcomePass    GateOutcome = "pass"
	OutcomeReject  GateOutcome = "reject"
	OutcomeSkipped GateOutcome = "skipped"
	OutcomeError   GateOutcome = "error"
)

// GatePayload carries gate-specific evidence for telemetry and downstream
// sizing. Each gate has its own payload type instead of a loosely typed map.
type GatePayload interface {
	Kind() string
}

// SignalEvidence is the payload of the deterministic signal gate.
type SignalEvidence struct {
	Strength  float64 `json:"strength"`
	Threshold float64 `json:"threshold"`
}

func (SignalEvidence) Kind() string { return "signal" }

// FilterEvidence is the payload of the statistical filter gate.
type FilterEvidence struct {
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
}

func (FilterEvidence) Kind() string { return "filter" }

// SentimentEvidence is the payload of the budgeted sentiment gate.
type SentimentEvidence struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Cost      float64 `json:"cost"`
	Source    string  `json:"source"` // "scored", "neutral-skip", "neutral-error"
}

func (SentimentEvidence) Kind() string { return "sentiment" }

// SizingEvidence is the payload of the risk-sizing gate.
type SizingEvidence struct {
	Notional float64 `json:"notional"`
	Shares   float64 `json:"shares"`
	RiskPct  float64 `json:"risk_pct"`
}

func (SizingEvidence) Kind() string { return "sizing" }

// ExecutionEvidence is the payload of the execution stage.
type ExecutionEvidence struct {
	OrderID     string  `json:"order_id"`
	FilledQty   float64 `json:"filled_qty"`
	FilledPrice float64 `json:"filled_price"`
}

func (ExecutionEvidence) Kind() string { return "execution" }

// GateDecision is an append-only telemetry record: exactly one is emitted
// per gate transition, including skips and errors. Never mutated after
// creation.
type GateDecision struct {
	ID        string      `json:"id"`
	Gate      string      `json:"gate"`
	Symbol    string      `json:"symbol"`
	Outcome   GateOutcome `json:"outcome"`
	Reason    string      `json:"reason,omitempty"`
	Payload   GatePayload `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// PayloadJSON renders the typed payload for persistence.
func (d GateDecision) PayloadJSON() string {
	if d.Payload == nil {
		return ""
	}
	raw, err := json.Marshal(d.Payload)
	if err != nil {
		return ""
	}
	return string(raw)
}

// LiquidationSeverity grades a liquidation check result.
type LiquidationSeverity string

const (
	SeverityNone     LiquidationSeverity = "none"
	SeverityWarning  LiquidationSeverity = "warning"
	SeverityCritical LiquidationSeverity = "critical"
)

// LiquidationEvent is the append-only audit record of one liquidation
// check. Every invocation of the liquidator produces one, action or not.
type LiquidationEvent struct {
	ID                string              `json:"id"`
	Trigger           string              `json:"trigger"`
	LossPct           float64             `json:"loss_pct"`
	LiquidatedSymbols []string            `json:"liquidated_symbols"`
	PreservedSymbols  []string            `json:"preserved_symbols"`
	FailedSymbols     []string            `json:"failed_symbols,omitempty"`
	Severity          LiquidationSeverity `json:"severity"`
	Note              string              `json:"note,omitempty"`
	Timestamp         time.Time           `json:"timestamp"`
}
