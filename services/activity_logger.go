package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrLogNotFound is returned when no journal exists for a date
var ErrLogNotFound = errors.New("activity log not found")

const journalDateFormat = "2006-01-02"

// ActivityLogger journals scans, recorded trades and lifecycle changes to one JSON file per day
type ActivityLogger struct {
	mu         sync.Mutex
	logger     *logrus.Logger
	logDir     string
	currentLog *DailyActivityLog
	now        func() time.Time
}

// DailyActivityLog represents a day's worth of activity
type DailyActivityLog struct {
	Date           string               `json:"date"`
	SessionStart   time.Time            `json:"session_start"`
	LastUpdated    time.Time            `json:"last_updated"`
	Summary        SessionSummary       `json:"summary"`
	Activities     []Activity           `json:"activities"`
	Scans          []ScanActivity       `json:"scans"`
	TradesRecorded []TradeActivity      `json:"trades_recorded"`
	TradesClosed   []TradeActivity      `json:"trades_closed"`
	Transitions    []TransitionActivity `json:"transitions"`
	Adjustments    []Adjustment         `json:"adjustments"`
}

// SessionSummary provides running totals for the day
type SessionSummary struct {
	ScansRun           int     `json:"scans_run"`
	SymbolsScanned     int     `json:"symbols_scanned"`
	OpportunitiesFound int     `json:"opportunities_found"`
	TradesRecorded     int     `json:"trades_recorded"`
	TradesClosed       int     `json:"trades_closed"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	PremiumRecorded    float64 `json:"premium_recorded"`
	ContractsExpired   int     `json:"contracts_expired"`
	LargestWinPct      float64 `json:"largest_win_pct"`
	LargestLossPct     float64 `json:"largest_loss_pct"`
}

// Activity is a free-form journal entry
type Activity struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"` // SCAN, TRADE, LIFECYCLE, SYSTEM
	Action    string                 `json:"action"`
	Symbol    string                 `json:"symbol,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Reasoning string                 `json:"reasoning,omitempty"`
}

// ScanActivity summarizes one scan
type ScanActivity struct {
	Timestamp     time.Time `json:"timestamp"`
	ScanID        string    `json:"scan_id"`
	Symbols       []string  `json:"symbols"`
	Threshold     float64   `json:"threshold"`
	Opportunities []string  `json:"opportunities"`
	Rejected      int       `json:"rejected"`
}

// TradeActivity records a trade entering or leaving the book
type TradeActivity struct {
	Timestamp  time.Time `json:"timestamp"`
	TradeID    uint      `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	TradeType  string    `json:"trade_type"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Premium    float64   `json:"premium,omitempty"`
	ProfitLoss float64   `json:"profit_loss,omitempty"`
	HoldDays   int       `json:"hold_days,omitempty"`
}

// TransitionActivity records a lifecycle status change
type TransitionActivity struct {
	Timestamp time.Time `json:"timestamp"`
	TradeID   uint      `json:"trade_id"`
	Symbol    string    `json:"symbol"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
}

// NewActivityLogger creates a new activity logger
func NewActivityLogger(logDir string) *ActivityLogger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := os.MkdirAll(logDir, 0755); err != nil {
		logger.WithError(err).Error("Failed to create activity log directory")
	}

	return &ActivityLogger{
		logger: logger,
		logDir: logDir,
		now:    time.Now,
	}
}

// LogActivity logs a general activity
func (al *ActivityLogger) LogActivity(activityType, action, symbol, reasoning string, details map[string]interface{}) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	log := al.ensureDay()
	log.Activities = append(log.Activities, Activity{
		Timestamp: al.now(),
		Type:      activityType,
		Action:    action,
		Symbol:    symbol,
		Details:   details,
		Reasoning: reasoning,
	})

	al.logger.WithFields(logrus.Fields{
		"type":   activityType,
		"action": action,
		"symbol": symbol,
	}).Info("Activity logged")

	return al.saveLog()
}

// LogScan records a completed scan
func (al *ActivityLogger) LogScan(result *ScanResult) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	found := make([]string, len(result.Opportunities))
	for i, o := range result.Opportunities {
		found[i] = o.Symbol
	}

	log := al.ensureDay()
	log.Scans = append(log.Scans, ScanActivity{
		Timestamp:     result.ScannedAt,
		ScanID:        result.ScanID,
		Symbols:       result.Symbols,
		Threshold:     result.Threshold,
		Opportunities: found,
		Rejected:      len(result.Rejected),
	})
	log.Summary.ScansRun++
	log.Summary.SymbolsScanned += len(result.Symbols)
	log.Summary.OpportunitiesFound += len(found)

	al.logger.WithFields(logrus.Fields{
		"scan_id":       result.ScanID,
		"symbols":       len(result.Symbols),
		"opportunities": len(found),
	}).Info("Scan logged")

	return al.saveLog()
}

// LogTradeRecorded records a trade entered into the book
func (al *ActivityLogger) LogTradeRecorded(trade interfaces.Trade, premium decimal.Decimal) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	log := al.ensureDay()
	log.TradesRecorded = append(log.TradesRecorded, TradeActivity{
		Timestamp: al.now(),
		TradeID:   trade.ID,
		Symbol:    trade.Symbol,
		TradeType: string(trade.TradeType),
		Quantity:  trade.Quantity,
		Price:     trade.Price.InexactFloat64(),
		Premium:   premium.InexactFloat64(),
	})
	log.Summary.TradesRecorded++
	log.Summary.PremiumRecorded += premium.InexactFloat64()

	al.logger.WithFields(logrus.Fields{
		"trade_id": trade.ID,
		"symbol":   trade.Symbol,
		"type":     trade.TradeType,
	}).Info("Trade recorded logged")

	return al.saveLog()
}

// LogTradeClosed records a trade closing with its profit/loss percentage
func (al *ActivityLogger) LogTradeClosed(trade interfaces.Trade, holdDays int) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	pl := 0.0
	if trade.ProfitLoss != nil {
		pl = trade.ProfitLoss.InexactFloat64()
	}

	log := al.ensureDay()
	log.TradesClosed = append(log.TradesClosed, TradeActivity{
		Timestamp:  al.now(),
		TradeID:    trade.ID,
		Symbol:     trade.Symbol,
		TradeType:  string(trade.TradeType),
		Quantity:   trade.Quantity,
		Price:      trade.Price.InexactFloat64(),
		ProfitLoss: pl,
		HoldDays:   holdDays,
	})
	log.Summary.TradesClosed++
	if pl >= 0 {
		log.Summary.WinningTrades++
		if pl > log.Summary.LargestWinPct {
			log.Summary.LargestWinPct = pl
		}
	} else {
		log.Summary.LosingTrades++
		if pl < log.Summary.LargestLossPct {
			log.Summary.LargestLossPct = pl
		}
	}

	al.logger.WithFields(logrus.Fields{
		"trade_id":    trade.ID,
		"symbol":      trade.Symbol,
		"profit_loss": pl,
		"hold_days":   holdDays,
	}).Info("Trade closed logged")

	return al.saveLog()
}

// LogTransition records a lifecycle status change
func (al *ActivityLogger) LogTransition(trade interfaces.Trade, to interfaces.TradeStatus, reason string) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	log := al.ensureDay()
	log.Transitions = append(log.Transitions, TransitionActivity{
		Timestamp: al.now(),
		TradeID:   trade.ID,
		Symbol:    trade.Symbol,
		From:      string(trade.Status),
		To:        string(to),
		Reason:    reason,
	})
	if to == interfaces.TradeStatusExpired {
		log.Summary.ContractsExpired++
	}

	return al.saveLog()
}

// LogAdjustments records advisory actions from a lifecycle review
func (al *ActivityLogger) LogAdjustments(adjustments []Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	log := al.ensureDay()
	log.Adjustments = append(log.Adjustments, adjustments...)
	return al.saveLog()
}

// GetCurrentLog returns a copy of today's log
func (al *ActivityLogger) GetCurrentLog() *DailyActivityLog {
	al.mu.Lock()
	defer al.mu.Unlock()

	log := *al.ensureDay()
	log.Activities = append([]Activity(nil), log.Activities...)
	log.Scans = append([]ScanActivity(nil), log.Scans...)
	log.TradesRecorded = append([]TradeActivity(nil), log.TradesRecorded...)
	log.TradesClosed = append([]TradeActivity(nil), log.TradesClosed...)
	log.Transitions = append([]TransitionActivity(nil), log.Transitions...)
	log.Adjustments = append([]Adjustment(nil), log.Adjustments...)
	return &log
}

// GetLogForDate retrieves the log for a YYYY-MM-DD date
func (al *ActivityLogger) GetLogForDate(date string) (*DailyActivityLog, error) {
	if _, err := time.Parse(journalDateFormat, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	data, err := os.ReadFile(al.logPath(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", date, ErrLogNotFound)
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	var log DailyActivityLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse log: %w", err)
	}

	return &log, nil
}

// ListAvailableLogs returns every journal date, newest first
func (al *ActivityLogger) ListAvailableLogs() ([]string, error) {
	files, err := os.ReadDir(al.logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	dates := make([]string, 0)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, "activity_") || filepath.Ext(name) != ".json" {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, "activity_"), ".json")
		if _, err := time.Parse(journalDateFormat, date); err == nil {
			dates = append(dates, date)
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// ensureDay returns today's log, reloading it from disk after a restart or rolling over at midnight.
// Callers hold al.mu.
func (al *ActivityLogger) ensureDay() *DailyActivityLog {
	now := al.now()
	date := now.Format(journalDateFormat)
	if al.currentLog != nil && al.currentLog.Date == date {
		return al.currentLog
	}

	if existing, err := al.GetLogForDate(date); err == nil {
		al.currentLog = existing
		return al.currentLog
	}

	al.currentLog = &DailyActivityLog{
		Date:           date,
		SessionStart:   now,
		Activities:     make([]Activity, 0),
		Scans:          make([]ScanActivity, 0),
		TradesRecorded: make([]TradeActivity, 0),
		TradesClosed:   make([]TradeActivity, 0),
		Transitions:    make([]TransitionActivity, 0),
		Adjustments:    make([]Adjustment, 0),
	}
	al.logger.WithField("date", date).Info("Activity journal started")
	return al.currentLog
}

func (al *ActivityLogger) logPath(date string) string {
	return filepath.Join(al.logDir, fmt.Sprintf("activity_%s.json", date))
}

// saveLog writes the current log to disk. Callers hold al.mu.
func (al *ActivityLogger) saveLog() error {
	if al.currentLog == nil {
		return fmt.Errorf("no active log to save")
	}
	al.currentLog.LastUpdated = al.now()

	data, err := json.MarshalIndent(al.currentLog, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	if err := os.WriteFile(al.logPath(al.currentLog.Date), data, 0644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}

	return nil
}
