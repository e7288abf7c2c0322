package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/risk-funnel-bot/internal/broker"
	"github.com/ducminhle1904/risk-funnel-bot/internal/pipeline"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// CandidateSource produces the funnel candidates for one cycle, along
// with the freshest market-data timestamp seen, for the staleness guard.
type CandidateSource interface {
	Candidates(ctx context.Context, symbols []string) ([]pipeline.Candidate, time.Time, error)
}

// momentumHistory is how many ticks the source keeps per symbol.
const momentumHistory = 12

// MomentumSource derives signal strength and confidence from short-term
// price momentum sampled once per cycle. It needs a few cycles of
// history before it emits a non-zero signal; until then candidates are
// rejected at the signal gate, which is the safe direction.
type MomentumSource struct {
	quotes broker.MarketData

	// ReferenceMove is the price move (as a fraction) that saturates
	// signal strength at 1.0.
	ReferenceMove float64

	mu      sync.Mutex
	history map[string][]float64
}

// NewMomentumSource creates a source over the quote boundary.
func NewMomentumSource(quotes broker.MarketData) *MomentumSource {
	return &MomentumSource{
		quotes:        quotes,
		ReferenceMove: 0.01,
		history:       make(map[string][]float64),
	}
}

// Candidates samples a ticker per symbol and derives the signal inputs.
// A symbol whose quote fails is dropped for this cycle; quote failure
// for every symbol is an error.
func (s *MomentumSource) Candidates(ctx context.Context, symbols []string) ([]pipeline.Candidate, time.Time, error) {
	var (
		out      []pipeline.Candidate
		freshest time.Time
		lastErr  error
	)

	for _, symbol := range symbols {
		ticker, err := s.quotes.GetTicker(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		if ticker.Timestamp.After(freshest) {
			freshest = ticker.Timestamp
		}

		strength, confidence, side := s.observe(symbol, ticker.Price)
		out = append(out, pipeline.Candidate{
			Symbol:         symbol,
			Side:           side,
			SignalStrength: strength,
			Confidence:     confidence,
			Price:          ticker.Price,
			MarketContext:  fmt.Sprintf("%s momentum %.2f confidence %.2f at %.2f", symbol, strength, confidence, ticker.Price),
		})
	}

	if len(out) == 0 && lastErr != nil {
		return nil, freshest, fmt.Errorf("no quotes available: %w", lastErr)
	}
	return out, freshest, nil
}

// observe records one price tick and returns the derived signal inputs.
func (s *MomentumSource) observe(symbol string, price float64) (strength, confidence float64, side types.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prices := append(s.history[symbol], price)
	if len(prices) > momentumHistory {
		prices = prices[len(prices)-momentumHistory:]
	}
	s.history[symbol] = prices

	side = types.SideBuy
	if len(prices) < 3 || prices[0] <= 0 {
		return 0, 0, side
	}

	move := (prices[len(prices)-1] - prices[0]) / prices[0]
	if move < 0 {
		side = types.SideSell
	}

	strength = abs(move) / s.ReferenceMove
	if strength > 1 {
		strength = 1
	}

	// Confidence is the fraction of ticks that moved with the overall
	// direction.
	agree := 0
	steps := 0
	for i := 1; i < len(prices); i++ {
		step := prices[i] - prices[i-1]
		if step == 0 {
			continue
		}
		steps++
		if (step > 0) == (move > 0) {
			agree++
		}
	}
	if steps > 0 {
		confidence = float64(agree) / float64(steps)
	}

	return strength, confidence, side
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
