package types

import "time"

// AccountSnapshot is a point-in-time view of the trading account.
// It is fetched fresh each cycle and never cached across cycles; AsOf
// feeds the staleness guard.
type AccountSnapshot struct {
	Equity           float64   `json:"equity"`
	Cash             float64   `json:"cash"`
	BuyingPower      float64   `json:"buying_power"`
	PatternDayTrader bool      `json:"pattern_day_trader"`
	DaytradeCount    int       `json:"daytrade_count"`
	AsOf             time.Time `json:"as_of"`
}

// Position is an open holding as reported by the account boundary.
// Quantity is signed, long positive. Positions are read-only to the risk
// engine; only fills through the execution boundary change them.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	AsOf         time.Time `json:"as_of"`
}

// MarketValue returns the absolute notional value at the current mark.
func (p Position) MarketValue() float64 {
	v := p.Quantity * p.CurrentPrice
	if v < 0 {
		return -v
	}
	return v
}

// UnrealizedPL returns the open profit or loss at the current mark.
func (p Position) UnrealizedPL() float64 {
	return (p.CurrentPrice - p.EntryPrice) * p.Quantity
}

// UnrealizedPLPct returns the open P/L as a percentage of entry value.
func (p Position) UnrealizedPLPct() float64 {
	base := p.EntryPrice * p.Quantity
	if base < 0 {
		base = -base
	}
	if base == 0 {
		return 0
	}
	return p.UnrealizedPL() / base * 100
}
