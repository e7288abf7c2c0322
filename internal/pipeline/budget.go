package pipeline

import (
	"sync"
	"time"
)

// BudgetController meters daily spend on the sentiment boundary. The
// sentiment gate asks CanAfford before calling out and records actual
// cost only after a successful call.
type BudgetController struct {
	mu         sync.Mutex
	dailyLimit float64
	spent      float64
	day        string
	now        func() time.Time
}

// NewBudgetController creates a controller with the given daily limit.
func NewBudgetController(dailyLimit float64) *BudgetController {
	return &BudgetController{
		dailyLimit: dailyLimit,
		day:        time.Now().Format("2006-01-02"),
		now:        time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (b *BudgetController) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// CanAfford reports whether estimate fits in the remaining budget.
func (b *BudgetController) CanAfford(estimate float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.spent+estimate <= b.dailyLimit
}

// RecordSpend charges actual cost against the day's budget.
func (b *BudgetController) RecordSpend(cost float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	b.spent += cost
}

// Spent returns the spend so far today.
func (b *BudgetController) Spent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.spent
}

// Remaining returns the unspent budget for today.
func (b *BudgetController) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	remaining := b.dailyLimit - b.spent
	if remaining < 0 {
		return 0
	}
	return remaining
}

// rollover zeroes the spend on day change. Callers hold the mutex.
func (b *BudgetController) rollover() {
	today := b.now().Format("2006-01-02")
	if b.day != today {
		b.day = today
		b.spent = 0
	}
}
