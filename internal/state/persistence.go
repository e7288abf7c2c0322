// Package state persists risk metrics and the audit side-streams
// across restarts. Losing circuit-breaker state on restart would
// silently re-arm an active breach, so saves happen after every
// mutating operation and loads are validated before use.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ducminhle1904/risk-funnel-bot/internal/logger"
	"github.com/ducminhle1904/risk-funnel-bot/internal/risk"
	"github.com/ducminhle1904/risk-funnel-bot/pkg/types"
)

const documentVersion = "1.0.0"

// Document is the persisted JSON state of the funnel.
type Document struct {
	Version      string       `json:"version"`
	Universe     []string     `json:"universe"`
	LastUpdated  time.Time    `json:"last_updated"`
	SessionStart time.Time    `json:"session_start"`
	Metrics      risk.Metrics `json:"metrics"`
	Notes        []Note       `json:"notes"`
}

// Note is one append-only audit line inside the state document.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Persistence manages the state document and the liquidation jsonl
// side-stream.
type Persistence struct {
	logger   *logger.Logger
	stateDir string
	universe []string

	mu       sync.Mutex
	current  *Document
	maxAge   time.Duration
	lastSave time.Time

	liquidationLogFile *os.File
}

// NewPersistence creates a persistence manager for the given universe.
// maxAge bounds how old a loaded document may be before it is discarded.
func NewPersistence(log *logger.Logger, stateDir string, universe []string, maxAge time.Duration) *Persistence {
	sorted := append([]string(nil), universe...)
	sort.Strings(sorted)

	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	return &Persistence{
		logger:   log,
		stateDir: stateDir,
		universe: sorted,
		current:  newDocument(sorted),
		maxAge:   maxAge,
	}
}

func newDocument(universe []string) *Document {
	now := time.Now()
	return &Document{
		Version:      documentVersion,
		Universe:     universe,
		LastUpdated:  now,
		SessionStart: now,
		Metrics:      *risk.NewMetrics(),
		Notes:        []Note{},
	}
}

// Initialize creates the state directory and opens the side-stream.
func (p *Persistence) Initialize() error {
	if err := os.MkdirAll(p.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	liqPath := filepath.Join(p.stateDir, "liquidations.jsonl")
	file, err := os.OpenFile(liqPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open liquidation log file: %w", err)
	}
	p.liquidationLogFile = file

	p.logger.Info("State persistence initialized: %s", p.stateDir)
	return nil
}

func (p *Persistence) statePath() string {
	return filepath.Join(p.stateDir, "funnel_state.json")
}

func (p *Persistence) backupPath() string {
	return filepath.Join(p.stateDir, "funnel_state_backup.json")
}

// Load reads and validates the persisted document. An invalid or
// too-old document is discarded in favor of a clean one, with a
// warning; the caller proceeds from fresh metrics.
func (p *Persistence) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stateFile := p.statePath()

	if _, err := os.Stat(stateFile); os.IsNotExist(err) {
		p.logger.Info("No existing state file found, starting with clean state")
		return nil
	}

	data, err := os.ReadFile(stateFile)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	if err := p.validate(&doc); err != nil {
		p.logger.Warning("Loaded state rejected (%v), using clean state", err)
		return nil
	}

	p.current = &doc
	p.logger.Info("State loaded from %s (last updated %s)", stateFile, doc.LastUpdated.Format(time.RFC3339))
	return nil
}

// Save writes the document atomically: marshal, write to a temp file,
// rename over the live file, keeping a backup of the previous version.
func (p *Persistence) Save() error {
	p.mu.Lock()
	doc := *p.current
	doc.LastUpdated = time.Now()
	p.current.LastUpdated = doc.LastUpdated
	p.mu.Unlock()

	stateFile := p.statePath()

	if _, err := os.Stat(stateFile); err == nil {
		if err := copyFile(stateFile, p.backupPath()); err != nil {
			p.logger.Warning("Failed to create state backup: %v", err)
		}
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	if err := os.Rename(tempFile, stateFile); err != nil {
		return fmt.Errorf("failed to move state file: %w", err)
	}

	p.mu.Lock()
	p.lastSave = time.Now()
	p.mu.Unlock()

	return nil
}

// SetMetrics stores the latest metrics snapshot in the document.
func (p *Persistence) SetMetrics(metrics risk.Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.Metrics = metrics
}

// Metrics returns a copy of the persisted metrics, for seeding the risk
// manager at startup.
func (p *Persistence) Metrics() risk.Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Metrics
}

// LastUpdated reports the document age for the staleness guard.
func (p *Persistence) LastUpdated() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.LastUpdated
}

// AppendNote adds an audit line to the document's append-only notes.
func (p *Persistence) AppendNote(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current.Notes = append(p.current.Notes, Note{
		Timestamp: time.Now(),
		Message:   fmt.Sprintf(format, args...),
	})

	// Bound the in-document log.
	if len(p.current.Notes) > 1000 {
		p.current.Notes = p.current.Notes[len(p.current.Notes)-1000:]
	}
}

// LogLiquidation appends the event to the jsonl side-stream.
func (p *Persistence) LogLiquidation(event types.LiquidationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.liquidationLogFile == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warning("Failed to marshal liquidation event: %v", err)
		return
	}
	p.liquidationLogFile.WriteString(string(data) + "\n")
	p.liquidationLogFile.Sync()
}

// Document returns a copy of the current state for reporting.
func (p *Persistence) Document() Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.current
}

// Close flushes the document and closes the side-stream.
func (p *Persistence) Close() error {
	if err := p.Save(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.liquidationLogFile != nil {
		return p.liquidationLogFile.Close()
	}
	return nil
}

func (p *Persistence) validate(doc *Document) error {
	if doc.Version == "" {
		return fmt.Errorf("state version is empty")
	}

	loaded := append([]string(nil), doc.Universe...)
	sort.Strings(loaded)
	if strings.Join(loaded, ",") != strings.Join(p.universe, ",") {
		return fmt.Errorf("universe mismatch: expected %v, got %v", p.universe, doc.Universe)
	}

	if time.Since(doc.LastUpdated) > p.maxAge {
		return fmt.Errorf("state is too old: %v", doc.LastUpdated)
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
