package reporting

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/risk-funnel-bot/internal/journal"
	"github.com/ducminhle1904/risk-funnel-bot/internal/risk"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

func sampleDecisions() []journal.DecisionRecord {
	now := time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC)
	return []journal.DecisionRecord{
		{ID: "01A", Gate: "signal", Symbol: "AAPL", Outcome: types.OutcomePass, CreatedAt: now},
		{ID: "01B", Gate: "filter", Symbol: "AAPL", Outcome: types.OutcomeReject, Reason: "confidence 0.40 below 0.60", CreatedAt: now.Add(time.Second)},
	}
}

func sampleLiquidations() []types.LiquidationEvent {
	return []types.LiquidationEvent{{
		ID:                "01L",
		Trigger:           "partial",
		LossPct:           0.034,
		LiquidatedSymbols: []string{"AAPL"},
		PreservedSymbols:  []string{"BIL"},
		Severity:          types.SeverityWarning,
		Timestamp:         time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC),
	}}
}

func TestConsoleRiskStatus(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)

	metrics := *risk.NewMetrics()
	metrics.DailyPL = -500
	metrics.CircuitBreakerTriggered = true
	metrics.BreakerReason = "daily loss limit breached"

	r.PrintRiskStatus(metrics, "TRIPPED")

	out := buf.String()
	assert.Contains(t, out, "RISK STATUS")
	assert.Contains(t, out, "TRIPPED")
	assert.Contains(t, out, "daily loss limit breached")
	assert.Contains(t, out, "-500.00")
}

func TestConsoleFunnelSummaryKeepsGateOrder(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)

	r.PrintFunnelSummary(map[string]map[types.GateOutcome]int{
		"execution": {types.OutcomePass: 1},
		"signal":    {types.OutcomePass: 3, types.OutcomeReject: 2},
	})

	out := buf.String()
	require.Contains(t, out, "signal")
	require.Contains(t, out, "execution")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("signal")), bytes.Index(buf.Bytes(), []byte("execution")))
}

func TestConsoleDecisionsAndLiquidations(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)

	r.PrintDecisions(sampleDecisions())
	r.PrintLiquidations(sampleLiquidations())

	out := buf.String()
	assert.Contains(t, out, "confidence 0.40 below 0.60")
	assert.Contains(t, out, "3.40%")
	assert.Contains(t, out, "BIL")
}

func TestWriteDecisionsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.csv")
	require.NoError(t, WriteDecisionsCSV(sampleDecisions(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Outcome", rows[0][4])
	assert.Equal(t, "reject", rows[2][4])
}

func TestWriteLiquidationsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liquidations.csv")
	require.NoError(t, WriteLiquidationsCSV(sampleLiquidations(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "partial", rows[1][2])
	assert.Equal(t, "3.40", rows[1][3])
}

func TestWriteSessionXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.xlsx")

	metrics := *risk.NewMetrics()
	metrics.TotalTrades = 4
	metrics.WinningTrades = 3
	metrics.LosingTrades = 1

	require.NoError(t, WriteSessionXLSX(SessionReport{
		Metrics:      metrics,
		BreakerState: "ARMED",
		Decisions:    sampleDecisions(),
		Liquidations: sampleLiquidations(),
	}, path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Risk Metrics", "Decisions", "Liquidations"}, fx.GetSheetList())

	state, err := fx.GetCellValue("Risk Metrics", "B14")
	require.NoError(t, err)
	assert.Equal(t, "ARMED", state)

	gate, err := fx.GetCellValue("Decisions", "D2")
	require.NoError(t, err)
	assert.Equal(t, "signal", gate)

	tier, err := fx.GetCellValue("Liquidations", "C2")
	require.NoError(t, err)
	assert.Equal(t, "partial", tier)
}
