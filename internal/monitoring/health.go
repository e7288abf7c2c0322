package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports bot liveness over HTTP. Degraded while the
// circuit breaker is tripped or the broker is unreachable, unhealthy
// when errors have accumulated.
type HealthChecker struct {
	mu             sync.RWMutex
	lastCycle      time.Time
	breakerTripped bool
	isConnected    bool
	errors         []string
}

type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	LastCycle      time.Time `json:"last_cycle"`
	BreakerTripped bool      `json:"breaker_tripped"`
	IsConnected    bool      `json:"is_connected"`
	Uptime         string    `json:"uptime"`
	Errors         []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetConnected marks the broker boundary reachable or not.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// SetBreakerTripped mirrors the circuit breaker state.
func (h *HealthChecker) SetBreakerTripped(tripped bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.breakerTripped = tripped
}

// CycleCompleted records a finished cycle and clears accumulated errors.
func (h *HealthChecker) CycleCompleted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.errors = h.errors[:0]
}

// RecordError appends an error for the health report.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 20 {
		h.errors = h.errors[len(h.errors)-20:]
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.isConnected || h.breakerTripped || time.Since(h.lastCycle) > 24*time.Hour {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		LastCycle:      h.lastCycle,
		BreakerTripped: h.breakerTripped,
		IsConnected:    h.isConnected,
		Uptime:         time.Since(startTime).String(),
		Errors:         h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
