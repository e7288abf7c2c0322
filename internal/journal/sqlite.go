// Package journal stores the append-only audit trail (gate decisions
// and liquidation events) in sqlite so it can be queried after the
// fact without replaying logs.
package journal

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

// SQLite is the sqlite-backed audit journal.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// RecordDecision appends one gate decision.
func (j *SQLite) RecordDecision(d types.GateDecision) error {
	_, err := j.db.Exec(`
		INSERT INTO gate_decisions
		(id, gate, symbol, outcome, reason, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Gate, d.Symbol, string(d.Outcome), d.Reason, d.PayloadJSON(), d.Timestamp,
	)
	return err
}

// RecordLiquidation appends one liquidation event.
func (j *SQLite) RecordLiquidation(e types.LiquidationEvent) error {
	_, err := j.db.Exec(`
		INSERT INTO liquidation_events
		(id, trigger_tier, loss_pct, liquidated, preserved, failed, severity, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Trigger, e.LossPct,
		strings.Join(e.LiquidatedSymbols, ","),
		strings.Join(e.PreservedSymbols, ","),
		strings.Join(e.FailedSymbols, ","),
		string(e.Severity), e.Note, e.Timestamp,
	)
	return err
}

// DecisionRecord is a stored gate decision with its payload as raw JSON.
type DecisionRecord struct {
	ID        string
	Gate      string
	Symbol    string
	Outcome   types.GateOutcome
	Reason    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// ListDecisionsBetween returns decisions created within [start, end),
// oldest first.
func (j *SQLite) ListDecisionsBetween(start, end time.Time) ([]DecisionRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, gate, symbol, outcome, reason, payload, created_at
		FROM gate_decisions
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var outcome, payload string
		if err := rows.Scan(&rec.ID, &rec.Gate, &rec.Symbol, &outcome, &rec.Reason, &payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Outcome = types.GateOutcome(outcome)
		if payload != "" {
			rec.Payload = json.RawMessage(payload)
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDecisionsBySymbol returns the full decision history for one
// instrument, oldest first.
func (j *SQLite) ListDecisionsBySymbol(symbol string) ([]DecisionRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, gate, symbol, outcome, reason, payload, created_at
		FROM gate_decisions
		WHERE symbol = ?
		ORDER BY created_at ASC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var outcome, payload string
		if err := rows.Scan(&rec.ID, &rec.Gate, &rec.Symbol, &outcome, &rec.Reason, &payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Outcome = types.GateOutcome(outcome)
		if payload != "" {
			rec.Payload = json.RawMessage(payload)
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// OutcomeCounts returns decision counts per gate and outcome within
// [start, end).
func (j *SQLite) OutcomeCounts(start, end time.Time) (map[string]map[types.GateOutcome]int, error) {
	rows, err := j.db.Query(`
		SELECT gate, outcome, COUNT(*)
		FROM gate_decisions
		WHERE created_at >= ? AND created_at < ?
		GROUP BY gate, outcome`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[types.GateOutcome]int)
	for rows.Next() {
		var gate, outcome string
		var count int
		if err := rows.Scan(&gate, &outcome, &count); err != nil {
			return nil, err
		}
		if out[gate] == nil {
			out[gate] = make(map[types.GateOutcome]int)
		}
		out[gate][types.GateOutcome(outcome)] = count
	}

	return out, rows.Err()
}

// ListLiquidationsBetween returns liquidation events created within
// [start, end), oldest first.
func (j *SQLite) ListLiquidationsBetween(start, end time.Time) ([]types.LiquidationEvent, error) {
	rows, err := j.db.Query(`
		SELECT id, trigger_tier, loss_pct, liquidated, preserved, failed, severity, note, created_at
		FROM liquidation_events
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.LiquidationEvent
	for rows.Next() {
		var e types.LiquidationEvent
		var liquidated, preserved, failed, severity string
		if err := rows.Scan(&e.ID, &e.Trigger, &e.LossPct, &liquidated, &preserved, &failed, &severity, &e.Note, &e.Timestamp); err != nil {
			return nil, err
		}
		e.LiquidatedSymbols = splitSymbols(liquidated)
		e.PreservedSymbols = splitSymbols(preserved)
		e.FailedSymbols = splitSymbols(failed)
		e.Severity = types.LiquidationSeverity(severity)
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (j *SQLite) Close() error {
	return j.db.Close()
}

func splitSymbols(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
