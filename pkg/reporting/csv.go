package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ducminhle1904/risk-funnel-bot/internal/journal"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// WriteDecisionsCSV writes gate decisions to a CSV file, one row per
// decision.
func WriteDecisionsCSV(decisions []journal.DecisionRecord, path string) error {
	f, err := createWithDir(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Time", "ID", "Symbol", "Gate", "Outcome", "Reason", "Payload"}); err != nil {
		return err
	}

	for _, d := range decisions {
		row := []string{
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			d.ID,
			d.Symbol,
			d.Gate,
			string(d.Outcome),
			d.Reason,
			string(d.Payload),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

// WriteLiquidationsCSV writes liquidation events to a CSV file.
func WriteLiquidationsCSV(events []types.LiquidationEvent, path string) error {
	f, err := createWithDir(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Time", "ID", "Tier", "Loss_%", "Severity", "Liquidated", "Preserved", "Failed", "Note"}); err != nil {
		return err
	}

	for _, e := range events {
		row := []string{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.ID,
			e.Trigger,
			fmt.Sprintf("%.2f", e.LossPct*100),
			string(e.Severity),
			strings.Join(e.LiquidatedSymbols, " "),
			strings.Join(e.PreservedSymbols, " "),
			strings.Join(e.FailedSymbols, " "),
			e.Note,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

func createWithDir(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}
