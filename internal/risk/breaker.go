package risk

// BreakerState is the circuit breaker's latch state.
type BreakerState int

const (
	BreakerArmed BreakerState = iota
	BreakerTripped
)

func (s BreakerState) String() string {
	switch s {
	case BreakerArmed:
		return "ARMED"
	case BreakerTripped:
		return "TRIPPED"
	default:
		return "UNKNOWN"
	}
}

// Breaker is a two-state latch: ARMED → TRIPPED on a breach, and back
// to ARMED only through the daily reset — never by a later evaluation
// that happens to pass. A tripped breaker must outlive lucky checks.
// Callers serialize access; the Manager holds its mutex around every
// breaker transition.
type Breaker struct {
	state  BreakerState
	reason string
}

// NewBreaker returns an armed breaker.
func NewBreaker() *Breaker {
	return &Breaker{state: BreakerArmed}
}

// Trip latches the breaker with the given reason. Tripping an already
// tripped breaker keeps the original reason.
func (b *Breaker) Trip(reason string) {
	if b.state == BreakerTripped {
		return
	}
	b.state = BreakerTripped
	b.reason = reason
}

// Reset re-arms the breaker. Only the daily reset path calls this.
func (b *Breaker) Reset() {
	b.state = BreakerArmed
	b.reason = ""
}

// Tripped reports whether the breaker is latched.
func (b *Breaker) Tripped() bool {
	return b.state == BreakerTripped
}

// State returns the current latch state.
func (b *Breaker) State() BreakerState {
	return b.state
}

// Reason returns the breach that latched the breaker, if any.
func (b *Breaker) Reason() string {
	return b.reason
}
