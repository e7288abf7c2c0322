package pipeline

import (
	"github.com/ducminhle1904/risk-funnel-bot/internal/monitoring"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// Sink receives every GateDecision the pipeline emits. Records are
// append-only and independent, so sinks may be fanned out freely.
type Sink interface {
	Emit(decision types.GateDecision)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(decision types.GateDecision)

func (f SinkFunc) Emit(decision types.GateDecision) { f(decision) }

// MultiSink fans one decision out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(decision types.GateDecision) {
	for _, s := range m {
		s.Emit(decision)
	}
}

// MetricsSink counts decisions in the Prometheus gate counters.
type MetricsSink struct{}

func (MetricsSink) Emit(decision types.GateDecision) {
	monitoring.RecordGateDecision(decision.Gate, string(decision.Outcome))
}
