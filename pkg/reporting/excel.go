package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/risk-funnel-bot/internal/journal"
	"github.com/ducminhle1904/risk-funnel-bot/internal/risk"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// ExcelStyles holds the style IDs used across sheets.
type ExcelStyles struct {
	Header   int
	Currency int
	Percent  int
}

// SessionReport is the full input to the Excel writer.
type SessionReport struct {
	Metrics      risk.Metrics
	BreakerState string
	Decisions    []journal.DecisionRecord
	Liquidations []types.LiquidationEvent
}

// WriteSessionXLSX writes a three-sheet workbook: risk metrics, gate
// decisions, and liquidation events.
func WriteSessionXLSX(report SessionReport, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const metricsSheet = "Risk Metrics"
	const decisionsSheet = "Decisions"
	const liquidationsSheet = "Liquidations"

	fx.SetSheetName(fx.GetSheetName(0), metricsSheet)
	fx.NewSheet(decisionsSheet)
	fx.NewSheet(liquidationsSheet)

	styles, err := createStyles(fx)
	if err != nil {
		return err
	}

	if err := writeMetricsSheet(fx, metricsSheet, report, styles); err != nil {
		return err
	}
	if err := writeDecisionsSheet(fx, decisionsSheet, report.Decisions, styles); err != nil {
		return err
	}
	if err := writeLiquidationsSheet(fx, liquidationsSheet, report.Liquidations, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func createStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	styles.Header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.Currency, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.Percent, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	return styles, err
}

func writeMetricsSheet(fx *excelize.File, sheet string, report SessionReport, styles ExcelStyles) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Daily P/L", report.Metrics.DailyPL},
		{"Daily Trades", report.Metrics.DailyTrades},
		{"Total Trades", report.Metrics.TotalTrades},
		{"Winning Trades", report.Metrics.WinningTrades},
		{"Losing Trades", report.Metrics.LosingTrades},
		{"Win Rate", report.Metrics.WinRate()},
		{"Gross Profit", report.Metrics.GrossProfit},
		{"Gross Loss", report.Metrics.GrossLoss},
		{"Peak Account Value", report.Metrics.PeakAccountValue},
		{"Max Drawdown %", report.Metrics.MaxDrawdownReached},
		{"Consecutive Losses", report.Metrics.ConsecutiveLosses},
		{"Max Consecutive Losses", report.Metrics.MaxConsecutiveLosses},
		{"Circuit Breaker", report.BreakerState},
		{"Breaker Reason", report.Metrics.BreakerReason},
		{"Last Reset", report.Metrics.LastResetDate},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if err := fx.SetCellStyle(sheet, "A1", "B1", styles.Header); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "A", "B", 24)
}

func writeDecisionsSheet(fx *excelize.File, sheet string, decisions []journal.DecisionRecord, styles ExcelStyles) error {
	header := []interface{}{"Time", "ID", "Symbol", "Gate", "Outcome", "Reason", "Payload"}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "G1", styles.Header); err != nil {
		return err
	}

	for i, d := range decisions {
		row := []interface{}{
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			d.ID,
			d.Symbol,
			d.Gate,
			string(d.Outcome),
			d.Reason,
			string(d.Payload),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return fx.SetColWidth(sheet, "A", "G", 22)
}

func writeLiquidationsSheet(fx *excelize.File, sheet string, events []types.LiquidationEvent, styles ExcelStyles) error {
	header := []interface{}{"Time", "ID", "Tier", "Loss %", "Severity", "Liquidated", "Preserved", "Failed", "Note"}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "I1", styles.Header); err != nil {
		return err
	}

	for i, e := range events {
		row := []interface{}{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.ID,
			e.Trigger,
			e.LossPct,
			string(e.Severity),
			strings.Join(e.LiquidatedSymbols, " "),
			strings.Join(e.PreservedSymbols, " "),
			strings.Join(e.FailedSymbols, " "),
			e.Note,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}

		lossCell, err := excelize.CoordinatesToCellName(4, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, lossCell, lossCell, styles.Percent); err != nil {
			return err
		}
	}

	return fx.SetColWidth(sheet, "A", "I", 20)
}
