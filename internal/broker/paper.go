package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/risk-funnel-bot/pkg/id"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// PaperBroker is a deterministic in-memory broker used for dry-run mode
// and tests. Orders fill instantly at the configured mark. PDT fields
// are settable so equity/day-trade scenarios can be exercised.
type PaperBroker struct {
	mu sync.Mutex

	cash             float64
	patternDayTrader bool
	daytradeCount    int

	marks     map[string]float64
	positions map[string]*types.Position

	failClose map[string]bool // symbols whose closes are forced to fail
}

// NewPaperBroker creates a paper broker with the given starting cash.
func NewPaperBroker(startingCash float64) *PaperBroker {
	return &PaperBroker{
		cash:      startingCash,
		marks:     make(map[string]float64),
		positions: make(map[string]*types.Position),
		failClose: make(map[string]bool),
	}
}

// SetMark sets the current price used to fill orders in symbol.
func (p *PaperBroker) SetMark(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[symbol] = price
	if pos, ok := p.positions[symbol]; ok {
		pos.CurrentPrice = price
		pos.AsOf = time.Now()
	}
}

// SetPDT configures the pattern-day-trader fields reported in snapshots.
func (p *PaperBroker) SetPDT(flagged bool, daytradeCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patternDayTrader = flagged
	p.daytradeCount = daytradeCount
}

// FailCloseFor forces ClosePosition on symbol to return an error.
func (p *PaperBroker) FailCloseFor(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failClose[symbol] = true
}

// SeedPosition installs an open position directly, for scenario setup.
func (p *PaperBroker) SeedPosition(symbol string, qty, entryPrice, currentPrice float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[symbol] = currentPrice
	p.positions[symbol] = &types.Position{
		Symbol:       symbol,
		Quantity:     qty,
		EntryPrice:   entryPrice,
		CurrentPrice: currentPrice,
		AsOf:         time.Now(),
	}
}

// GetTicker implements MarketData from the configured marks.
func (p *PaperBroker) GetTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark, ok := p.marks[symbol]
	if !ok || mark <= 0 {
		return types.Ticker{}, fmt.Errorf("no mark for symbol %s", symbol)
	}

	return types.Ticker{
		Symbol:    symbol,
		Price:     mark,
		Timestamp: time.Now(),
	}, nil
}

// GetAccountSnapshot implements AccountProvider.
func (p *PaperBroker) GetAccountSnapshot(ctx context.Context) (types.AccountSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	equity := p.cash
	for _, pos := range p.positions {
		equity += pos.Quantity * pos.CurrentPrice
	}

	return types.AccountSnapshot{
		Equity:           equity,
		Cash:             p.cash,
		BuyingPower:      p.cash,
		PatternDayTrader: p.patternDayTrader,
		DaytradeCount:    p.daytradeCount,
		AsOf:             time.Now(),
	}, nil
}

// GetPositions implements AccountProvider.
func (p *PaperBroker) GetPositions(ctx context.Context) ([]types.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out, nil
}

// SubmitOrder implements Executor. Market orders fill at the current
// mark for the full notional.
func (p *PaperBroker) SubmitOrder(ctx context.Context, symbol string, side types.Side, notional float64) (types.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark, ok := p.marks[symbol]
	if !ok || mark <= 0 {
		return types.Fill{}, fmt.Errorf("no mark for symbol %s", symbol)
	}
	if notional <= 0 {
		return types.Fill{}, fmt.Errorf("invalid notional %.2f", notional)
	}

	qty := notional / mark
	signedQty := qty
	if side == types.SideSell {
		signedQty = -qty
	}

	if side == types.SideBuy && notional > p.cash {
		return types.Fill{}, fmt.Errorf("insufficient cash: need %.2f, have %.2f", notional, p.cash)
	}

	realized := p.applyFill(symbol, signedQty, mark)

	fill := types.Fill{
		OrderID:     id.New(),
		Symbol:      symbol,
		Side:        side,
		FilledQty:   qty,
		FilledPrice: mark,
		Notional:    notional,
		RealizedPL:  realized,
		Timestamp:   time.Now(),
	}

	return fill, nil
}

// ClosePosition implements Executor.
func (p *PaperBroker) ClosePosition(ctx context.Context, symbol string) (types.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failClose[symbol] {
		return types.Fill{}, fmt.Errorf("close rejected for %s: connection reset", symbol)
	}

	pos, ok := p.positions[symbol]
	if !ok || pos.Quantity == 0 {
		return types.Fill{}, fmt.Errorf("no open position in %s", symbol)
	}

	mark := pos.CurrentPrice
	qty := pos.Quantity
	side := types.SideSell
	if qty < 0 {
		side = types.SideBuy
	}

	realized := p.applyFill(symbol, -qty, mark)

	absQty := qty
	if absQty < 0 {
		absQty = -absQty
	}

	return types.Fill{
		OrderID:     id.New(),
		Symbol:      symbol,
		Side:        side,
		FilledQty:   absQty,
		FilledPrice: mark,
		Notional:    absQty * mark,
		RealizedPL:  realized,
		Timestamp:   time.Now(),
	}, nil
}

// applyFill mutates cash and positions for a signed quantity fill at
// price, returning realized P/L for the closing portion. Callers hold
// the mutex.
func (p *PaperBroker) applyFill(symbol string, signedQty, price float64) float64 {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &types.Position{Symbol: symbol, CurrentPrice: price}
		p.positions[symbol] = pos
	}

	realized := 0.0

	closing := pos.Quantity != 0 && (pos.Quantity > 0) != (signedQty > 0)
	if closing {
		closeQty := signedQty
		if abs(closeQty) > abs(pos.Quantity) {
			closeQty = -pos.Quantity
		}
		realized = (price - pos.EntryPrice) * -closeQty
	}

	newQty := pos.Quantity + signedQty
	switch {
	case closing && newQty != 0 && (newQty > 0) != (pos.Quantity > 0):
		// Crossed through flat: remainder opens at the fill price.
		pos.EntryPrice = price
	case !closing && signedQty != 0:
		// Opening or adding: blend the entry price.
		totalCost := pos.EntryPrice*abs(pos.Quantity) + price*abs(signedQty)
		pos.EntryPrice = totalCost / abs(newQty)
	}

	p.cash -= signedQty * price
	pos.Quantity = newQty
	pos.CurrentPrice = price
	pos.AsOf = time.Now()

	if pos.Quantity == 0 {
		delete(p.positions, symbol)
	}

	return realized
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
