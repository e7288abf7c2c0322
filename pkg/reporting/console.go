// Package reporting renders the audit journal and risk metrics as
// console tables, CSV, and Excel workbooks for post-session review.
package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/risk-funnel-bot/internal/journal"
	"github.com/ducminhle1904/risk-funnel-bot/internal/risk"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// ConsoleReporter writes human-readable tables.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// PrintRiskStatus renders the current risk metrics and breaker state.
func (r *ConsoleReporter) PrintRiskStatus(metrics risk.Metrics, breakerState string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("RISK STATUS")
	t.SetStyle(table.StyleRounded)

	breaker := "✅ " + breakerState
	if metrics.CircuitBreakerTriggered {
		breaker = fmt.Sprintf("🚨 %s (%s)", breakerState, metrics.BreakerReason)
	}

	t.AppendRows([]table.Row{
		{"💰 Daily P/L", fmt.Sprintf("$%.2f", metrics.DailyPL)},
		{"🔄 Daily Trades", metrics.DailyTrades},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", metrics.MaxDrawdownReached)},
		{"📈 Peak Value", fmt.Sprintf("$%.2f", metrics.PeakAccountValue)},
		{"⚡ Breaker", breaker},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"🔢 Total Trades", metrics.TotalTrades},
		{"✅ Winning", metrics.WinningTrades},
		{"❌ Losing", metrics.LosingTrades},
		{"🎯 Win Rate", fmt.Sprintf("%.1f%%", metrics.WinRate()*100)},
		{"🔻 Loss Streak", fmt.Sprintf("%d (max %d)", metrics.ConsecutiveLosses, metrics.MaxConsecutiveLosses)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 24, Align: text.AlignLeft},
	})

	t.Render()
}

// PrintFunnelSummary renders decision counts per gate and outcome.
func (r *ConsoleReporter) PrintFunnelSummary(counts map[string]map[types.GateOutcome]int) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("FUNNEL SUMMARY")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Gate", "Pass", "Reject", "Skipped", "Error"})

	// Fixed funnel order; gates with no decisions are omitted.
	for _, gate := range []string{"signal", "filter", "sentiment", "sizing", "execution"} {
		byOutcome, ok := counts[gate]
		if !ok {
			continue
		}
		t.AppendRow(table.Row{
			gate,
			byOutcome[types.OutcomePass],
			byOutcome[types.OutcomeReject],
			byOutcome[types.OutcomeSkipped],
			byOutcome[types.OutcomeError],
		})
	}

	t.Render()
}

// PrintDecisions renders individual gate decisions, newest last.
func (r *ConsoleReporter) PrintDecisions(decisions []journal.DecisionRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("GATE DECISIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Symbol", "Gate", "Outcome", "Reason"})

	for _, d := range decisions {
		t.AppendRow(table.Row{
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			d.Symbol,
			d.Gate,
			outcomeBadge(d.Outcome),
			d.Reason,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60},
	})

	t.Render()
}

// PrintLiquidations renders liquidation audit events.
func (r *ConsoleReporter) PrintLiquidations(events []types.LiquidationEvent) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("LIQUIDATION EVENTS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Tier", "Loss %", "Closed", "Preserved", "Failed"})

	for _, e := range events {
		t.AppendRow(table.Row{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Trigger,
			fmt.Sprintf("%.2f%%", e.LossPct*100),
			joinOrDash(e.LiquidatedSymbols),
			joinOrDash(e.PreservedSymbols),
			joinOrDash(e.FailedSymbols),
		})
	}

	t.Render()
}

func outcomeBadge(outcome types.GateOutcome) string {
	switch outcome {
	case types.OutcomePass:
		return "✅ pass"
	case types.OutcomeReject:
		return "❌ reject"
	case types.OutcomeSkipped:
		return "⏭ skipped"
	default:
		return "⚠️ error"
	}
}

func joinOrDash(symbols []string) string {
	if len(symbols) == 0 {
		return "-"
	}
	return strings.Join(symbols, ", ")
}
