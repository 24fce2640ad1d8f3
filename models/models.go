package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DBTrade represents a recorded trade in the database
type DBTrade struct {
	gorm.Model
	Symbol    string `gorm:"index"`
	TradeType string `gorm:"index"`
	Quantity  int64
	Price     decimal.Decimal `gorm:"type:numeric"`

	// Option specific fields, both set or both null
	OptionStrike *decimal.Decimal `gorm:"type:numeric"`
	OptionExpiry *time.Time

	Status     string    `gorm:"index"` // OPEN, CLOSED, EXPIRED, ASSIGNED
	Timestamp  time.Time `gorm:"index"`
	ClosedAt   *time.Time
	ProfitLoss *decimal.Decimal `gorm:"type:numeric"` // percent
	Notes      string
}

// DBPosition represents a position snapshot in the database
type DBPosition struct {
	gorm.Model
	Symbol         string          `gorm:"uniqueIndex"`
	Qty            decimal.Decimal `gorm:"type:numeric"`
	AvgEntryPrice  decimal.Decimal `gorm:"type:numeric"`
	MarketValue    decimal.Decimal `gorm:"type:numeric"`
	CostBasis      decimal.Decimal `gorm:"type:numeric"`
	UnrealizedPL   decimal.Decimal `gorm:"type:numeric"`
	UnrealizedPLPC decimal.Decimal `gorm:"type:numeric"`
	CurrentPrice   decimal.Decimal `gorm:"type:numeric"`
	Side           string
	SnapshotTime   time.Time `gorm:"index"`
}

// DBAccountSnapshot represents account state at a point in time
type DBAccountSnapshot struct {
	gorm.Model
	Cash             decimal.Decimal `gorm:"type:numeric"`
	PortfolioValue   decimal.Decimal `gorm:"type:numeric"`
	BuyingPower      decimal.Decimal `gorm:"type:numeric"`
	DayTradeCount    int
	PatternDayTrader bool
	SnapshotTime     time.Time `gorm:"index"`
}

// DBSignal represents a scan signal kept for audit
type DBSignal struct {
	gorm.Model
	ScanID          string `gorm:"index"`
	Symbol          string `gorm:"index"`
	Strategy        string `gorm:"index"`
	RSI             float64
	Zone            string
	Confidence      float64
	EstimatedReturn float64
	Accepted        bool // passed the confidence threshold
	Reason          string
}

// DBWatchlistItem is a symbol scanned for opportunities
type DBWatchlistItem struct {
	gorm.Model
	Symbol  string `gorm:"uniqueIndex"`
	AddedAt time.Time
	Notes   string
}

// DBSettings holds the single row of strategy settings
type DBSettings struct {
	gorm.Model
	RiskLevel              string  `gorm:"default:moderate"` // conservative, moderate, aggressive
	MaxPositionSize        float64 `gorm:"default:5000"`
	ProfitTargetPercentage float64 `gorm:"default:5"`
	StopLossPercentage     float64 `gorm:"default:3"`
	OptionsExpiryDays      int     `gorm:"default:30"`
	ConfidenceThreshold    float64 `gorm:"default:0.7"`
	EnabledStrategies      string  `gorm:"default:covered_call"` // comma separated
}

// DefaultSettings mirrors the moderate profile used before a user saves settings
func DefaultSettings() DBSettings {
	return DBSettings{
		RiskLevel:              "moderate",
		MaxPositionSize:        5000,
		ProfitTargetPercentage: 5,
		StopLossPercentage:     3,
		OptionsExpiryDays:      30,
		ConfidenceThreshold:    0.7,
		EnabledStrategies:      "covered_call",
	}
}

// TableName overrides for cleaner table names
func (DBTrade) TableName() string {
	return "trades"
}

func (DBPosition) TableName() string {
	return "positions"
}

func (DBAccountSnapshot) TableName() string {
	return "account_snapshots"
}

func (DBSignal) TableName() string {
	return "signals"
}

func (DBWatchlistItem) TableName() string {
	return "watchlist"
}

func (DBSettings) TableName() string {
	return "settings"
}
