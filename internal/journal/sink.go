package journal

import "github.com/ducminhle1904/risk-funnel-bot/pkg/types"

// Sink adapts the journal to the pipeline's telemetry interface.
// Journal writes are best-effort from the pipeline's point of view;
// failures go to onError instead of blocking a trading cycle.
type Sink struct {
	journal *SQLite
	onError func(error)
}

// NewSink wraps the journal for pipeline telemetry. onError may be nil.
func NewSink(j *SQLite, onError func(error)) *Sink {
	if onError == nil {
		onError = func(error) {}
	}
	return &Sink{journal: j, onError: onError}
}

func (s *Sink) Emit(decision types.GateDecision) {
	if err := s.journal.RecordDecision(decision); err != nil {
		s.onError(err)
	}
}
