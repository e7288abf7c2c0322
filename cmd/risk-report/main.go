package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ducminhle1904/risk-funnel-bot/internal/journal"
	"github.com/ducminhle1904/risk-funnel-bot/internal/state"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/reporting"
)

func main() {
	var (
		journalPath = flag.String("journal", "state/audit.db", "Path to the audit journal database")
		stateDir    = flag.String("state", "state", "State directory holding funnel_state.json")
		symbol      = flag.String("symbol", "", "Restrict the decision listing to one symbol")
		since       = flag.Duration("since", 24*time.Hour, "Report window, counted back from now")
		format      = flag.String("format", "console", "Output format: console, csv, or xlsx")
		out         = flag.String("out", "reports", "Output directory (csv) or file path (xlsx)")
	)
	flag.Parse()

	j, err := journal.Open(*journalPath)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer j.Close()

	end := time.Now()
	start := end.Add(-*since)

	var decisions []journal.DecisionRecord
	if *symbol != "" {
		decisions, err = j.ListDecisionsBySymbol(*symbol)
	} else {
		decisions, err = j.ListDecisionsBetween(start, end)
	}
	if err != nil {
		log.Fatalf("Failed to read decisions: %v", err)
	}

	liquidations, err := j.ListLiquidationsBetween(start, end)
	if err != nil {
		log.Fatalf("Failed to read liquidations: %v", err)
	}

	doc, err := loadState(*stateDir)
	if err != nil {
		log.Printf("Warning: no persisted state (%v), risk metrics will be empty", err)
	}

	breakerState := "ARMED"
	if doc.Metrics.CircuitBreakerTriggered {
		breakerState = "TRIPPED"
	}

	switch *format {
	case "console":
		counts, err := j.OutcomeCounts(start, end)
		if err != nil {
			log.Fatalf("Failed to aggregate decisions: %v", err)
		}

		r := reporting.NewConsoleReporter(os.Stdout)
		r.PrintRiskStatus(doc.Metrics, breakerState)
		r.PrintFunnelSummary(counts)
		r.PrintDecisions(decisions)
		r.PrintLiquidations(liquidations)

	case "csv":
		decisionsPath := filepath.Join(*out, "decisions.csv")
		liquidationsPath := filepath.Join(*out, "liquidations.csv")
		if err := reporting.WriteDecisionsCSV(decisions, decisionsPath); err != nil {
			log.Fatalf("Failed to write decisions CSV: %v", err)
		}
		if err := reporting.WriteLiquidationsCSV(liquidations, liquidationsPath); err != nil {
			log.Fatalf("Failed to write liquidations CSV: %v", err)
		}
		fmt.Printf("📄 Wrote %s and %s\n", decisionsPath, liquidationsPath)

	case "xlsx":
		path := *out
		if filepath.Ext(path) != ".xlsx" {
			path = filepath.Join(path, "session.xlsx")
		}
		err := reporting.WriteSessionXLSX(reporting.SessionReport{
			Metrics:      doc.Metrics,
			BreakerState: breakerState,
			Decisions:    decisions,
			Liquidations: liquidations,
		}, path)
		if err != nil {
			log.Fatalf("Failed to write workbook: %v", err)
		}
		fmt.Printf("📊 Wrote %s\n", path)

	default:
		log.Fatalf("Unknown format %q (want console, csv, or xlsx)", *format)
	}
}

// loadState reads the persisted state document directly; the reporter
// never mutates it.
func loadState(stateDir string) (state.Document, error) {
	var doc state.Document

	data, err := os.ReadFile(filepath.Join(stateDir, "funnel_state.json"))
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse state file: %w", err)
	}
	return doc, nil
}
