package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"arbion-trader/analytics"
	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const recentTradesLimit = 5

// TradeMetrics are the derived figures shown next to a trade
type TradeMetrics struct {
	Premium             *decimal.Decimal `json:"premium,omitempty"`
	SimpleReturnPct     *decimal.Decimal `json:"simple_return_pct,omitempty"`
	AnnualizedReturnPct *decimal.Decimal `json:"annualized_return_pct,omitempty"`
	HoldingDays         int              `json:"holding_days"`
	DaysToExpiry        *int             `json:"days_to_expiry,omitempty"`
}

// TradeRow is a trade with its metrics
type TradeRow struct {
	interfaces.Trade
	Metrics TradeMetrics `json:"metrics"`
}

// TradeHistory is a filtered trade listing with its summary
type TradeHistory struct {
	Filter  analytics.TradeFilter   `json:"filter"`
	Trades  []TradeRow              `json:"trades"`
	Summary analytics.Summary       `json:"summary"`
	Issues  []analytics.RecordIssue `json:"issues,omitempty"`
}

// PositionView is a broker position with its consistency check
type PositionView struct {
	*interfaces.Position
	Warning string `json:"warning,omitempty"`
}

// Dashboard is the landing page snapshot
type Dashboard struct {
	GeneratedAt       time.Time               `json:"generated_at"`
	Account           *interfaces.Account     `json:"account,omitempty"`
	Positions         []PositionView          `json:"positions"`
	TotalMarketValue  decimal.Decimal         `json:"total_market_value"`
	TotalUnrealizedPL decimal.Decimal         `json:"total_unrealized_pl"`
	OpenCoveredCalls  int                     `json:"open_covered_calls"`
	Summary           analytics.Summary       `json:"summary"`
	Issues            []analytics.RecordIssue `json:"issues,omitempty"`
	RecentTrades      []TradeRow              `json:"recent_trades"`
	BrokerUnavailable string                  `json:"broker_unavailable,omitempty"`
	FromSnapshot      bool                    `json:"from_snapshot,omitempty"`
}

// PositionHistory is implemented by stores that keep the last position snapshot
type PositionHistory interface {
	GetPositions() ([]*interfaces.Position, error)
}

// StatisticsService derives trade statistics and the dashboard from storage and the broker
type StatisticsService struct {
	store  TradeStore
	broker interfaces.BrokerService
	logger *logrus.Logger
	now    func() time.Time
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(store TradeStore, broker interfaces.BrokerService) *StatisticsService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &StatisticsService{
		store:  store,
		broker: broker,
		logger: logger,
		now:    time.Now,
	}
}

// TradeStatistics applies the filter to the stored history and summarizes the result
func (s *StatisticsService) TradeStatistics(filter analytics.TradeFilter) (*TradeHistory, error) {
	trades, err := s.store.ListTrades("")
	if err != nil {
		return nil, err
	}

	if filter.Now.IsZero() {
		filter.Now = s.now()
	}
	filtered := filter.Apply(trades)
	summary, issues := analytics.Summarize(filtered)
	if len(issues) > 0 {
		s.logger.WithField("count", len(issues)).Warn("Skipped malformed trade records")
	}

	rows := make([]TradeRow, len(filtered))
	for i, t := range filtered {
		rows[i] = TradeRow{Trade: t, Metrics: MetricsFor(t, filter.Now)}
	}

	return &TradeHistory{
		Filter:  filter,
		Trades:  rows,
		Summary: summary.Rounded(),
		Issues:  issues,
	}, nil
}

// MetricsFor derives premium and return figures for a trade. Covered-call returns are
// measured against the strike and annualized over the actual holding period: open to close,
// or open to expiry while the contract is still live.
func MetricsFor(t interfaces.Trade, now time.Time) TradeMetrics {
	end := now
	switch {
	case t.ClosedAt != nil:
		end = *t.ClosedAt
	case t.OptionExpiry != nil:
		end = *t.OptionExpiry
	}
	m := TradeMetrics{HoldingDays: analytics.HoldingDays(t.Timestamp, end)}

	if t.TradeType != interfaces.TradeTypeCoveredCall {
		return m
	}

	premium, err := analytics.PremiumTotal(t)
	if err != nil {
		return m
	}
	premium = analytics.Round2(premium)
	m.Premium = &premium

	if t.Status == interfaces.TradeStatusOpen {
		dte := analytics.DaysToExpiry(*t.OptionExpiry, now)
		m.DaysToExpiry = &dte
	}

	simple, err := analytics.SimpleReturnPct(*t.OptionStrike, t.Price)
	if err != nil {
		return m
	}
	annualized, err := analytics.AnnualizedReturnPct(simple, m.HoldingDays)
	if err != nil {
		return m
	}

	simple = analytics.Round2(simple)
	annualized = analytics.Round2(annualized)
	m.SimpleReturnPct = &simple
	m.AnnualizedReturnPct = &annualized
	return m
}

// DashboardSnapshot gathers account, positions and the all-time summary.
// Broker failures degrade to a snapshot without account data.
func (s *StatisticsService) DashboardSnapshot(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	trades, err := s.store.ListTrades("")
	if err != nil {
		return nil, err
	}

	summary, issues := analytics.Summarize(trades)
	dash := &Dashboard{
		GeneratedAt:       now,
		Positions:         make([]PositionView, 0),
		TotalMarketValue:  decimal.Zero,
		TotalUnrealizedPL: decimal.Zero,
		Summary:           summary.Rounded(),
		Issues:            issues,
		RecentTrades:      make([]TradeRow, 0, recentTradesLimit),
	}

	for i, t := range trades {
		if t.TradeType == interfaces.TradeTypeCoveredCall && t.Status == interfaces.TradeStatusOpen {
			dash.OpenCoveredCalls++
		}
		if i < recentTradesLimit {
			dash.RecentTrades = append(dash.RecentTrades, TradeRow{Trade: t, Metrics: MetricsFor(t, now)})
		}
	}

	positions, err := s.brokerPositions(ctx, dash)
	if err != nil {
		s.logger.WithError(err).Warn("Broker unavailable for dashboard")
		dash.BrokerUnavailable = err.Error()
		positions = s.snapshotPositions()
		dash.FromSnapshot = len(positions) > 0
	}
	for _, p := range positions {
		view := PositionView{Position: p}
		if err := analytics.ValidatePosition(*p, analytics.DefaultPositionTolerance); err != nil {
			view.Warning = err.Error()
		}
		dash.Positions = append(dash.Positions, view)
		dash.TotalMarketValue = dash.TotalMarketValue.Add(p.MarketValue)
		dash.TotalUnrealizedPL = dash.TotalUnrealizedPL.Add(p.UnrealizedPL)
	}

	return dash, nil
}

func (s *StatisticsService) brokerPositions(ctx context.Context, dash *Dashboard) ([]*interfaces.Position, error) {
	account, err := s.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	dash.Account = account

	positions, err := s.broker.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	return positions, nil
}

// snapshotPositions reads the last lifecycle snapshot when the store keeps one
func (s *StatisticsService) snapshotPositions() []*interfaces.Position {
	history, ok := s.store.(PositionHistory)
	if !ok {
		return nil
	}
	positions, err := history.GetPositions()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load position snapshot")
		return nil
	}
	return positions
}

var csvHeader = []string{
	"id", "timestamp", "symbol", "trade_type", "quantity", "price", "option_strike", "option_expiry",
	"status", "profit_loss", "closed_at", "premium", "simple_return_pct", "annualized_return_pct", "holding_days",
}

// ExportCSV writes the filtered trade history as CSV
func (s *StatisticsService) ExportCSV(w io.Writer, filter analytics.TradeFilter) error {
	history, err := s.TradeStatistics(filter)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range history.Trades {
		record := []string{
			strconv.FormatUint(uint64(row.ID), 10),
			row.Timestamp.Format(time.RFC3339),
			row.Symbol,
			string(row.TradeType),
			strconv.FormatInt(row.Quantity, 10),
			row.Price.String(),
			decimalString(row.OptionStrike),
			timeString(row.OptionExpiry, "2006-01-02"),
			string(row.Status),
			decimalString(row.ProfitLoss),
			timeString(row.ClosedAt, time.RFC3339),
			decimalString(row.Metrics.Premium),
			decimalString(row.Metrics.SimpleReturnPct),
			decimalString(row.Metrics.AnnualizedReturnPct),
			strconv.Itoa(row.Metrics.HoldingDays),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func timeString(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}
