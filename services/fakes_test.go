package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"arbion-trader/interfaces"
	"arbion-trader/models"

	"github.com/shopspring/decimal"
)

var errNotFound = errors.New("not found")

// memStore is an in-memory stand-in for database.LocalStorage
type memStore struct {
	mu          sync.Mutex
	nextID      uint
	trades      map[uint]*interfaces.Trade
	positions   map[string]*interfaces.Position
	accounts    []*interfaces.Account
	signals     []*models.DBSignal
	watchlist   []*models.DBWatchlistItem
	settings    models.DBSettings
	settingsErr error
}

func newMemStore() *memStore {
	return &memStore{
		trades:    make(map[uint]*interfaces.Trade),
		positions: make(map[string]*interfaces.Position),
		settings:  models.DefaultSettings(),
	}
}

func (m *memStore) CreateTrade(trade *interfaces.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	trade.ID = m.nextID
	copied := *trade
	m.trades[trade.ID] = &copied
	return nil
}

func (m *memStore) GetTrade(id uint) (*interfaces.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %d: %w", id, errNotFound)
	}
	copied := *t
	return &copied, nil
}

func (m *memStore) ListTrades(status interfaces.TradeStatus) ([]interfaces.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]interfaces.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *memStore) CloseTrade(id uint, profitLoss decimal.Decimal, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return fmt.Errorf("trade %d: %w", id, errNotFound)
	}
	t.Status = interfaces.TradeStatusClosed
	t.ProfitLoss = &profitLoss
	t.ClosedAt = &closedAt
	return nil
}

func (m *memStore) UpdateTradeStatus(id uint, status interfaces.TradeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return fmt.Errorf("trade %d: %w", id, errNotFound)
	}
	t.Status = status
	return nil
}

func (m *memStore) SavePosition(position *interfaces.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[position.Symbol] = position
	return nil
}

func (m *memStore) GetPositions() ([]*interfaces.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*interfaces.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) SaveAccountSnapshot(account *interfaces.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, account)
	return nil
}

func (m *memStore) SaveSignals(signals []*models.DBSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, signals...)
	return nil
}

func (m *memStore) ListWatchlist() ([]*models.DBWatchlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchlist, nil
}

func (m *memStore) GetSettings() (*models.DBSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settingsErr != nil {
		return nil, m.settingsErr
	}
	s := m.settings
	return &s, nil
}

// fakeBroker serves canned account data; symbols without canned bars get the simulated walk
type fakeBroker struct {
	account    *interfaces.Account
	positions  []*interfaces.Position
	bars       map[string][]*interfaces.Bar
	accountErr error
	barsErr    map[string]error
}

func (f *fakeBroker) GetAccount(ctx context.Context) (*interfaces.Account, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return f.account, nil
}

func (f *fakeBroker) GetPositions(ctx context.Context) ([]*interfaces.Position, error) {
	return f.positions, nil
}

func (f *fakeBroker) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]*interfaces.Bar, error) {
	if err := f.barsErr[symbol]; err != nil {
		return nil, err
	}
	if bars, ok := f.bars[symbol]; ok {
		return bars, nil
	}
	return simulateBars(symbol, start, end), nil
}

// fixedAdvisor returns the same advice for every candidate
type fixedAdvisor struct {
	advice *Advice
	err    error
	calls  int
	last   CandidateContext
	mu     sync.Mutex
}

func (a *fixedAdvisor) Name() string    { return "fixed" }
func (a *fixedAdvisor) Available() bool { return true }

func (a *fixedAdvisor) AnalyzeCandidate(ctx context.Context, candidate CandidateContext) (*Advice, error) {
	a.mu.Lock()
	a.calls++
	a.last = candidate
	a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	advice := *a.advice
	return &advice, nil
}

// risingBars builds a steady uptrend with a daily wobble, oldest first
func risingBars(symbol string, n int, start float64) []*interfaces.Bar {
	bars := make([]*interfaces.Bar, n)
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		wobble := 0.015
		if i%2 == 1 {
			wobble = -0.008
		}
		price *= 1 + wobble
		bars[i] = &interfaces.Bar{
			Symbol:    symbol,
			Timestamp: day.AddDate(0, 0, i),
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    1_000_000,
		}
	}
	return bars
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func timePtr(t time.Time) *time.Time {
	return &t
}
