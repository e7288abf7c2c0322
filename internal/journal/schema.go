package journal

const schema = `
CREATE TABLE IF NOT EXISTS gate_decisions (
	id TEXT PRIMARY KEY,
	gate TEXT NOT NULL,
	symbol TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_gate_decisions_symbol ON gate_decisions(symbol);
CREATE INDEX IF NOT EXISTS idx_gate_decisions_created ON gate_decisions(created_at);

CREATE TABLE IF NOT EXISTS liquidation_events (
	id TEXT PRIMARY KEY,
	trigger_tier TEXT NOT NULL,
	loss_pct REAL NOT NULL,
	liquidated TEXT NOT NULL,
	preserved TEXT NOT NULL,
	failed TEXT NOT NULL,
	severity TEXT NOT NULL,
	note TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_liquidation_events_created ON liquidation_events(created_at);
`
