package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger represents a dated session file logger for funnel activity
type Logger struct {
	universe string
	logFile  *os.File
	logger   *log.Logger
	mu       sync.Mutex
	logDir   string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARN"
	LogLevelError    LogLevel = "ERROR"
	LogLevelTrade    LogLevel = "TRADE"
	LogLevelCritical LogLevel = "CRITICAL"
)

// NewLogger creates a session file logger for the given symbol universe.
// One dated log file per day per universe.
func NewLogger(logDir string, symbols []string) (*Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	universe := strings.Join(symbols, "-")
	if len(universe) > 40 {
		universe = fmt.Sprintf("%s-and-%d-more", symbols[0], len(symbols)-1)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("funnel_%s_%s.log", universe, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		universe: universe,
		logFile:  file,
		logger:   log.New(file, "", 0),
		logDir:   logDir,
	}

	l.writeSessionHeader()

	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 FUNNEL SESSION STARTED
================================================================================
Universe: %s
Started: %s
================================================================================
`, l.universe, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs an executed trade
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Critical logs a hard risk event (PDT block, breaker trip, full
// liquidation). Callers mirror these to the notifier.
func (l *Logger) Critical(format string, args ...interface{}) {
	l.Log(LogLevelCritical, format, args...)
}

// LogCycleSummary logs a per-cycle funnel summary block
func (l *Logger) LogCycleSummary(cycle int, candidates, passed, rejected, skipped int, dailyPL float64, breakerState string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	summary := fmt.Sprintf(`
[%s] [STATUS] ==================== CYCLE %d SUMMARY ====================
📊 Candidates: %d | Passed: %d | Rejected: %d | Skipped: %d
💹 Daily P/L: $%.2f
🔒 Circuit Breaker: %s
==============================================================`,
		timestamp, cycle, candidates, passed, rejected, skipped, dailyPL, breakerState)

	l.logger.Println(summary)
}

// LogTradeExecution logs an execution-boundary fill
func (l *Logger) LogTradeExecution(symbol, side, orderID string, qty, price, notional float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== %s %s EXECUTED ====================
✅ Order ID: %s
📦 Quantity: %.4f
💰 Price: $%.2f
💵 Notional: $%.2f
=============================================================`,
		timestamp, strings.ToUpper(side), symbol, orderID, qty, price, notional)

	l.logger.Println(tradeLog)
}

// LogLiquidation logs a liquidation event block
func (l *Logger) LogLiquidation(trigger string, lossPct float64, liquidated, preserved, failed []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	block := fmt.Sprintf(`
[%s] [CRITICAL] ==================== LIQUIDATION: %s ====================
📉 Daily Loss: %.2f%%
🧯 Liquidated: %s
🛟 Preserved: %s`,
		timestamp, strings.ToUpper(trigger), lossPct*100,
		joinOrNone(liquidated), joinOrNone(preserved))

	if len(failed) > 0 {
		block += fmt.Sprintf("\n⚠️  Failed: %s", strings.Join(failed, ", "))
	}
	block += "\n=============================================================="

	l.logger.Println(block)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close writes the session footer and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		footer := fmt.Sprintf(`
================================================================================
🛑 FUNNEL SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05"))
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("funnel_%s_%s.log", l.universe, timestamp)
	return filepath.Join(l.logDir, filename)
}

func joinOrNone(symbols []string) string {
	if len(symbols) == 0 {
		return "(none)"
	}
	return strings.Join(symbols, ", ")
}
