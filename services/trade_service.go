package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arbion-trader/analytics"
	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrInvalidTrade marks trade input or state that cannot be accepted
var ErrInvalidTrade = errors.New("invalid trade")

// TradeStore is the trade persistence used by the trade and statistics services
type TradeStore interface {
	CreateTrade(trade *interfaces.Trade) error
	GetTrade(id uint) (*interfaces.Trade, error)
	ListTrades(status interfaces.TradeStatus) ([]interfaces.Trade, error)
	CloseTrade(id uint, profitLoss decimal.Decimal, closedAt time.Time) error
	UpdateTradeStatus(id uint, status interfaces.TradeStatus) error
}

// TradeRequest is user input for recording a trade
type TradeRequest struct {
	Symbol       string           `json:"symbol" binding:"required"`
	TradeType    string           `json:"trade_type" binding:"required"`
	Quantity     int64            `json:"quantity" binding:"required"`
	Price        decimal.Decimal  `json:"price"`
	OptionStrike *decimal.Decimal `json:"option_strike,omitempty"`
	OptionExpiry *time.Time       `json:"option_expiry,omitempty"`
	Timestamp    *time.Time       `json:"timestamp,omitempty"`
}

// TradeService records trades entered by the user and closes them
type TradeService struct {
	store   TradeStore
	journal *ActivityLogger
	logger  *logrus.Logger
	now     func() time.Time
}

// NewTradeService creates a new trade service
func NewTradeService(store TradeStore, journal *ActivityLogger) *TradeService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &TradeService{
		store:   store,
		journal: journal,
		logger:  logger,
		now:     time.Now,
	}
}

// RecordTrade validates and stores a new OPEN trade
func (s *TradeService) RecordTrade(ctx context.Context, req TradeRequest) (*interfaces.Trade, error) {
	tradeType := interfaces.TradeType(strings.ToUpper(strings.TrimSpace(req.TradeType)))
	if !tradeType.Valid() {
		return nil, fmt.Errorf("%w: unknown trade type %q", ErrInvalidTrade, req.TradeType)
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidTrade)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidTrade)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidTrade)
	}

	timestamp := s.now()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	trade := &interfaces.Trade{
		Symbol:       symbol,
		TradeType:    tradeType,
		Quantity:     req.Quantity,
		Price:        req.Price,
		OptionStrike: req.OptionStrike,
		OptionExpiry: req.OptionExpiry,
		Status:       interfaces.TradeStatusOpen,
		Timestamp:    timestamp,
	}
	if err := analytics.ValidateTrade(*trade); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTrade, err)
	}

	if err := s.store.CreateTrade(trade); err != nil {
		return nil, err
	}

	premium := decimal.Zero
	if trade.TradeType == interfaces.TradeTypeCoveredCall {
		premium, _ = analytics.PremiumTotal(*trade)
	}

	s.logger.WithFields(logrus.Fields{
		"id":      trade.ID,
		"symbol":  trade.Symbol,
		"type":    trade.TradeType,
		"premium": premium.String(),
	}).Info("Trade recorded")

	if s.journal != nil {
		if err := s.journal.LogTradeRecorded(*trade, premium); err != nil {
			s.logger.WithError(err).Warn("Failed to journal trade")
		}
	}
	return trade, nil
}

// CloseTrade closes an OPEN trade with its realized profit/loss percentage
func (s *TradeService) CloseTrade(ctx context.Context, id uint, profitLoss decimal.Decimal) (*interfaces.Trade, error) {
	trade, err := s.store.GetTrade(id)
	if err != nil {
		return nil, err
	}
	if trade.Status != interfaces.TradeStatusOpen {
		return nil, fmt.Errorf("%w: trade %d is %s", ErrInvalidTrade, id, trade.Status)
	}

	closedAt := s.now()
	if err := s.store.CloseTrade(id, profitLoss, closedAt); err != nil {
		return nil, err
	}

	trade.Status = interfaces.TradeStatusClosed
	trade.ProfitLoss = &profitLoss
	trade.ClosedAt = &closedAt

	holdDays := analytics.HoldingDays(trade.Timestamp, closedAt)
	s.logger.WithFields(logrus.Fields{
		"id":          id,
		"symbol":      trade.Symbol,
		"profit_loss": profitLoss.String(),
		"hold_days":   holdDays,
	}).Info("Trade closed")

	if s.journal != nil {
		if err := s.journal.LogTradeClosed(*trade, holdDays); err != nil {
			s.logger.WithError(err).Warn("Failed to journal trade close")
		}
	}
	return trade, nil
}
