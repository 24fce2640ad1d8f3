package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arbion-trader/analytics"
	"arbion-trader/interfaces"
	"arbion-trader/models"

	"github.com/sirupsen/logrus"
)

// LifecycleStorage is the persistence the lifecycle job needs
type LifecycleStorage interface {
	TradeStore
	SavePosition(position *interfaces.Position) error
	SaveAccountSnapshot(account *interfaces.Account) error
	GetSettings() (*models.DBSettings, error)
}

// LifecycleReport summarizes one lifecycle pass
type LifecycleReport struct {
	RanAt          time.Time    `json:"ran_at"`
	Expired        []uint       `json:"expired"`
	PositionsSaved int          `json:"positions_saved"`
	AccountSaved   bool         `json:"account_saved"`
	Adjustments    []Adjustment `json:"adjustments"`
	BrokerError    string       `json:"broker_error,omitempty"`
}

// TradeLifecycleService moves open trades through their lifecycle and snapshots broker state
type TradeLifecycleService struct {
	storage LifecycleStorage
	broker  interfaces.BrokerService
	journal *ActivityLogger
	logger  *logrus.Logger
	now     func() time.Time

	mu         sync.Mutex
	lastReport *LifecycleReport
}

// NewTradeLifecycleService creates a new lifecycle service
func NewTradeLifecycleService(storage LifecycleStorage, broker interfaces.BrokerService, journal *ActivityLogger) *TradeLifecycleService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &TradeLifecycleService{
		storage: storage,
		broker:  broker,
		journal: journal,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one lifecycle pass. Expiry transitions always run; broker failures
// only skip the snapshot and adjustment steps.
func (s *TradeLifecycleService) Run(ctx context.Context) (*LifecycleReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	report := &LifecycleReport{
		RanAt:       now,
		Expired:     make([]uint, 0),
		Adjustments: make([]Adjustment, 0),
	}

	open, err := s.storage.ListTrades(interfaces.TradeStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to load open trades: %w", err)
	}

	stillOpen := make([]interfaces.Trade, 0, len(open))
	for _, trade := range open {
		if !expiresNow(trade, now) {
			stillOpen = append(stillOpen, trade)
			continue
		}
		if err := s.storage.UpdateTradeStatus(trade.ID, interfaces.TradeStatusExpired); err != nil {
			s.logger.WithError(err).WithField("id", trade.ID).Error("Failed to expire trade")
			continue
		}
		report.Expired = append(report.Expired, trade.ID)
		s.logger.WithFields(logrus.Fields{
			"id":     trade.ID,
			"symbol": trade.Symbol,
		}).Info("Covered call expired")

		if s.journal != nil {
			if err := s.journal.LogTransition(trade, interfaces.TradeStatusExpired, "Option reached expiration"); err != nil {
				s.logger.WithError(err).Warn("Failed to journal transition")
			}
		}
	}

	positions, err := s.snapshotBroker(ctx, report)
	if err != nil {
		report.BrokerError = err.Error()
		s.logger.WithError(err).Warn("Broker snapshot skipped")
		s.lastReport = report
		return report, nil
	}

	report.Adjustments = s.reviewAdjustments(stillOpen, positions, now)
	if len(report.Adjustments) > 0 && s.journal != nil {
		if err := s.journal.LogAdjustments(report.Adjustments); err != nil {
			s.logger.WithError(err).Warn("Failed to journal adjustments")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"expired":     len(report.Expired),
		"positions":   report.PositionsSaved,
		"adjustments": len(report.Adjustments),
	}).Info("Lifecycle pass complete")

	s.lastReport = report
	return report, nil
}

// LastReport returns the most recent pass, or nil before the first run
func (s *TradeLifecycleService) LastReport() *LifecycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *TradeLifecycleService) snapshotBroker(ctx context.Context, report *LifecycleReport) (map[string]*interfaces.Position, error) {
	account, err := s.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if err := s.storage.SaveAccountSnapshot(account); err != nil {
		s.logger.WithError(err).Error("Failed to save account snapshot")
	} else {
		report.AccountSaved = true
	}

	positions, err := s.broker.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	bySymbol := make(map[string]*interfaces.Position, len(positions))
	for _, p := range positions {
		bySymbol[p.Symbol] = p
		if err := analytics.ValidatePosition(*p, analytics.DefaultPositionTolerance); err != nil {
			s.logger.WithError(err).WithField("symbol", p.Symbol).Warn("Broker position is inconsistent")
		}
		if err := s.storage.SavePosition(p); err != nil {
			s.logger.WithError(err).WithField("symbol", p.Symbol).Error("Failed to save position")
			continue
		}
		report.PositionsSaved++
	}
	return bySymbol, nil
}

// reviewAdjustments runs the advisory roll/close rules for open covered calls backed by a position
func (s *TradeLifecycleService) reviewAdjustments(open []interfaces.Trade, positions map[string]*interfaces.Position, now time.Time) []Adjustment {
	settings, err := s.storage.GetSettings()
	if err != nil {
		s.logger.WithError(err).Warn("Settings unavailable, skipping adjustment review")
		return make([]Adjustment, 0)
	}
	strategy := NewCoveredCallStrategy(strategyParamsFrom(settings))

	adjustments := make([]Adjustment, 0)
	for _, trade := range open {
		if trade.TradeType != interfaces.TradeTypeCoveredCall {
			continue
		}
		position, ok := positions[trade.Symbol]
		if !ok {
			continue
		}
		adj := strategy.AdjustPosition(trade, position.AvgEntryPrice, position.CurrentPrice, now)
		if adj.Action != AdjustNone {
			adjustments = append(adjustments, adj)
		}
	}
	return adjustments
}

func expiresNow(trade interfaces.Trade, now time.Time) bool {
	if trade.TradeType != interfaces.TradeTypeCoveredCall || trade.OptionExpiry == nil {
		return false
	}
	return analytics.DaysToExpiry(*trade.OptionExpiry, now) == 0
}
