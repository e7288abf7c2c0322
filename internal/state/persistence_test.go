package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/risk-funnel-bot/internal/logger"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

func testPersistence(t *testing.T, universe []string) *Persistence {
	t.Helper()

	log, err := logger.NewLogger(t.TempDir(), universe)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	p := NewPersistence(log, t.TempDir(), universe, 7*24*time.Hour)
	require.NoError(t, p.Initialize())
	return p
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	universe := []string{"AAPL", "MSFT"}
	p := testPersistence(t, universe)

	metrics := p.Metrics()
	metrics.DailyPL = -1234.5
	metrics.TotalTrades = 7
	metrics.CircuitBreakerTriggered = true
	metrics.BreakerReason = "daily loss 4.00% breached 3.00% limit"
	p.SetMetrics(metrics)
	p.AppendNote("breaker tripped mid-session")

	require.NoError(t, p.Save())

	// Fresh persistence over the same directory sees the saved state.
	log, err := logger.NewLogger(t.TempDir(), universe)
	require.NoError(t, err)
	defer log.Close()

	reloaded := NewPersistence(log, p.stateDir, universe, 7*24*time.Hour)
	require.NoError(t, reloaded.Initialize())
	require.NoError(t, reloaded.Load())

	got := reloaded.Metrics()
	assert.Equal(t, -1234.5, got.DailyPL)
	assert.Equal(t, 7, got.TotalTrades)
	assert.True(t, got.CircuitBreakerTriggered)
	assert.Contains(t, got.BreakerReason, "daily loss")

	doc := reloaded.Document()
	require.Len(t, doc.Notes, 1)
	assert.Contains(t, doc.Notes[0].Message, "breaker tripped")
}

func TestLoadRejectsUniverseMismatch(t *testing.T) {
	p := testPersistence(t, []string{"AAPL"})
	m := p.Metrics()
	m.TotalTrades = 5
	p.SetMetrics(m)
	require.NoError(t, p.Save())

	log, err := logger.NewLogger(t.TempDir(), []string{"TSLA"})
	require.NoError(t, err)
	defer log.Close()

	other := NewPersistence(log, p.stateDir, []string{"TSLA"}, 7*24*time.Hour)
	require.NoError(t, other.Initialize())
	require.NoError(t, other.Load())

	// Mismatch falls back to clean metrics.
	assert.Zero(t, other.Metrics().TotalTrades)
}

func TestLoadRejectsTooOldState(t *testing.T) {
	p := testPersistence(t, []string{"AAPL"})
	require.NoError(t, p.Save())

	// Age the file content artificially.
	raw, err := os.ReadFile(p.statePath())
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	doc.LastUpdated = time.Now().Add(-30 * 24 * time.Hour)
	doc.Metrics.TotalTrades = 99
	aged, err := json.Marshal(&doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.statePath(), aged, 0644))

	log, err := logger.NewLogger(t.TempDir(), []string{"AAPL"})
	require.NoError(t, err)
	defer log.Close()

	fresh := NewPersistence(log, p.stateDir, []string{"AAPL"}, 7*24*time.Hour)
	require.NoError(t, fresh.Initialize())
	require.NoError(t, fresh.Load())

	assert.Zero(t, fresh.Metrics().TotalTrades)
}

func TestSaveKeepsBackup(t *testing.T) {
	p := testPersistence(t, []string{"AAPL"})

	require.NoError(t, p.Save())
	require.NoError(t, p.Save())

	_, err := os.Stat(p.backupPath())
	assert.NoError(t, err)
}

func TestLiquidationSideStream(t *testing.T) {
	p := testPersistence(t, []string{"AAPL"})

	p.LogLiquidation(types.LiquidationEvent{
		ID:                "01TEST",
		Trigger:           "partial",
		LossPct:           0.035,
		LiquidatedSymbols: []string{"AAPL"},
		PreservedSymbols:  []string{"BIL"},
		Severity:          types.SeverityWarning,
		Timestamp:         time.Now(),
	})

	raw, err := os.ReadFile(filepath.Join(p.stateDir, "liquidations.jsonl"))
	require.NoError(t, err)

	var event types.LiquidationEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, "partial", event.Trigger)
	assert.Equal(t, []string{"AAPL"}, event.LiquidatedSymbols)
}
