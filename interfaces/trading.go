package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TradeType identifies what kind of execution a trade record describes
type TradeType string

const (
	TradeTypeCoveredCall TradeType = "COVERED_CALL"
	TradeTypeBuyStock    TradeType = "BUY_STOCK"
	TradeTypeSellStock   TradeType = "SELL_STOCK"
	TradeTypeBuyToClose  TradeType = "BUY_TO_CLOSE"
	TradeTypeAssigned    TradeType = "ASSIGNED"
)

// TradeTypes lists every known trade type in display order
var TradeTypes = []TradeType{
	TradeTypeCoveredCall,
	TradeTypeBuyStock,
	TradeTypeSellStock,
	TradeTypeBuyToClose,
	TradeTypeAssigned,
}

// Valid reports whether t is a known trade type
func (t TradeType) Valid() bool {
	for _, known := range TradeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TradeStatus is the lifecycle state of a trade
type TradeStatus string

const (
	TradeStatusOpen     TradeStatus = "OPEN"
	TradeStatusClosed   TradeStatus = "CLOSED"
	TradeStatusExpired  TradeStatus = "EXPIRED"
	TradeStatusAssigned TradeStatus = "ASSIGNED"
)

// Valid reports whether s is a known trade status
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusOpen, TradeStatusClosed, TradeStatusExpired, TradeStatusAssigned:
		return true
	}
	return false
}

// Trade is a single recorded execution.
// Quantity is in shares-equivalent units as entered by the user; option prices are per share.
type Trade struct {
	ID           uint             `json:"id"`
	Symbol       string           `json:"symbol"`
	TradeType    TradeType        `json:"trade_type"`
	Quantity     int64            `json:"quantity"`
	Price        decimal.Decimal  `json:"price"`
	OptionStrike *decimal.Decimal `json:"option_strike,omitempty"`
	OptionExpiry *time.Time       `json:"option_expiry,omitempty"`
	Status       TradeStatus      `json:"status"`
	ProfitLoss   *decimal.Decimal `json:"profit_loss,omitempty"` // percent, set once CLOSED
	Timestamp    time.Time        `json:"timestamp"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
}

type Position struct {
	Symbol         string          `json:"symbol"`
	Qty            decimal.Decimal `json:"qty"`
	AvgEntryPrice  decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	MarketValue    decimal.Decimal `json:"market_value"`
	CostBasis      decimal.Decimal `json:"cost_basis"`
	UnrealizedPL   decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPC decimal.Decimal `json:"unrealized_plpc"`
	Side           string          `json:"side"`
}

type Account struct {
	ID               string          `json:"id"`
	Cash             decimal.Decimal `json:"cash"`
	PortfolioValue   decimal.Decimal `json:"portfolio_value"`
	BuyingPower      decimal.Decimal `json:"buying_power"`
	DayTradeCount    int             `json:"day_trade_count"`
	PatternDayTrader bool            `json:"pattern_day_trader"`
}

type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	VWAP      float64   `json:"vwap"`
}

// Opportunity is a ranked scan result. It lives only in transient session storage.
type Opportunity struct {
	Symbol          string            `json:"symbol"`
	Strategy        string            `json:"strategy"`
	Confidence      float64           `json:"confidence"`       // 0-1
	EstimatedReturn float64           `json:"estimated_return"` // annualized percent
	CurrentPrice    float64           `json:"current_price,omitempty"`
	RSI             float64           `json:"rsi,omitempty"`
	Call            *OptionContract   `json:"call,omitempty"`
	Legs            []*OptionContract `json:"legs,omitempty"`
	Commentary      string            `json:"commentary,omitempty"`
}

// BrokerService supplies account state and price history
type BrokerService interface {
	GetAccount(ctx context.Context) (*Account, error)
	GetPositions(ctx context.Context) ([]*Position, error)
	GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]*Bar, error)
}

// OptionDataService defines interface for options market data
type OptionDataService interface {
	FindCallsNearDTE(ctx context.Context, underlying string, targetDTE, tolerance int) ([]*OptionContract, error)
	FindPutsNearDTE(ctx context.Context, underlying string, targetDTE, tolerance int) ([]*OptionContract, error)
	GetOptionSnapshot(ctx context.Context, optionSymbol string) (*OptionContract, error)
}
