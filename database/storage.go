package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"arbion-trader/interfaces"
	"arbion-trader/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a unique record is inserted twice
	ErrAlreadyExists = errors.New("record already exists")
)

// LocalStorage persists trades, snapshots, signals, the watchlist and settings in SQLite
type LocalStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewLocalStorage creates a new local storage service
func NewLocalStorage(dbPath string) (*LocalStorage, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.DBTrade{},
		&models.DBPosition{},
		&models.DBAccountSnapshot{},
		&models.DBSignal{},
		&models.DBWatchlistItem{},
		&models.DBSettings{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &LocalStorage{
		db:     db,
		logger: logger,
	}, nil
}

// CreateTrade inserts a trade and writes the assigned ID back
func (s *LocalStorage) CreateTrade(trade *interfaces.Trade) error {
	dbTrade := tradeToDB(trade)
	dbTrade.ID = 0

	if err := s.db.Create(dbTrade).Error; err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	trade.ID = dbTrade.ID
	s.logger.WithFields(logrus.Fields{
		"id":     trade.ID,
		"symbol": trade.Symbol,
		"type":   trade.TradeType,
	}).Debug("Trade saved")
	return nil
}

// GetTrade retrieves a trade by ID
func (s *LocalStorage) GetTrade(id uint) (*interfaces.Trade, error) {
	var dbTrade models.DBTrade

	result := s.db.First(&dbTrade, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trade %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get trade: %w", result.Error)
	}

	return dbToTrade(&dbTrade), nil
}

// ListTrades returns trades newest first, optionally limited to one status
func (s *LocalStorage) ListTrades(status interfaces.TradeStatus) ([]interfaces.Trade, error) {
	var dbTrades []*models.DBTrade

	query := s.db.Model(&models.DBTrade{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	if err := query.Order("timestamp DESC").Find(&dbTrades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}

	trades := make([]interfaces.Trade, len(dbTrades))
	for i, dbTrade := range dbTrades {
		trades[i] = *dbToTrade(dbTrade)
	}
	return trades, nil
}

// CloseTrade marks a trade CLOSED with its realized profit/loss percentage
func (s *LocalStorage) CloseTrade(id uint, profitLoss decimal.Decimal, closedAt time.Time) error {
	result := s.db.Model(&models.DBTrade{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      string(interfaces.TradeStatusClosed),
		"profit_loss": profitLoss,
		"closed_at":   closedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to close trade: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateTradeStatus moves a trade to a new lifecycle status
func (s *LocalStorage) UpdateTradeStatus(id uint, status interfaces.TradeStatus) error {
	result := s.db.Model(&models.DBTrade{}).Where("id = ?", id).Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update trade status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("trade %d: %w", id, ErrNotFound)
	}
	return nil
}

// SavePosition upserts the latest snapshot for a symbol
func (s *LocalStorage) SavePosition(position *interfaces.Position) error {
	dbPosition := &models.DBPosition{
		Symbol:         position.Symbol,
		Qty:            position.Qty,
		AvgEntryPrice:  position.AvgEntryPrice,
		MarketValue:    position.MarketValue,
		CostBasis:      position.CostBasis,
		UnrealizedPL:   position.UnrealizedPL,
		UnrealizedPLPC: position.UnrealizedPLPC,
		CurrentPrice:   position.CurrentPrice,
		Side:           position.Side,
		SnapshotTime:   time.Now(),
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"qty", "avg_entry_price", "market_value", "cost_basis", "unrealized_pl",
			"unrealized_plpc", "current_price", "side", "snapshot_time", "updated_at",
		}),
	}).Create(dbPosition)
	if result.Error != nil {
		return fmt.Errorf("failed to save position: %w", result.Error)
	}

	return nil
}

// GetPositions returns the stored position snapshots
func (s *LocalStorage) GetPositions() ([]*interfaces.Position, error) {
	var dbPositions []*models.DBPosition

	if err := s.db.Order("symbol ASC").Find(&dbPositions).Error; err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	positions := make([]*interfaces.Position, len(dbPositions))
	for i, p := range dbPositions {
		positions[i] = &interfaces.Position{
			Symbol:         p.Symbol,
			Qty:            p.Qty,
			AvgEntryPrice:  p.AvgEntryPrice,
			CurrentPrice:   p.CurrentPrice,
			MarketValue:    p.MarketValue,
			CostBasis:      p.CostBasis,
			UnrealizedPL:   p.UnrealizedPL,
			UnrealizedPLPC: p.UnrealizedPLPC,
			Side:           p.Side,
		}
	}
	return positions, nil
}

// SaveAccountSnapshot saves an account snapshot
func (s *LocalStorage) SaveAccountSnapshot(account *interfaces.Account) error {
	dbSnapshot := &models.DBAccountSnapshot{
		Cash:             account.Cash,
		PortfolioValue:   account.PortfolioValue,
		BuyingPower:      account.BuyingPower,
		DayTradeCount:    account.DayTradeCount,
		PatternDayTrader: account.PatternDayTrader,
		SnapshotTime:     time.Now(),
	}

	if err := s.db.Create(dbSnapshot).Error; err != nil {
		return fmt.Errorf("failed to save account snapshot: %w", err)
	}

	return nil
}

// SaveSignals stores the per-symbol results of a scan
func (s *LocalStorage) SaveSignals(signals []*models.DBSignal) error {
	if len(signals) == 0 {
		return nil
	}

	if err := s.db.Create(&signals).Error; err != nil {
		return fmt.Errorf("failed to save signals: %w", err)
	}

	s.logger.WithField("count", len(signals)).Debug("Signals saved")
	return nil
}

// GetSignals returns the most recent signals for a symbol
func (s *LocalStorage) GetSignals(symbol string, limit int) ([]*models.DBSignal, error) {
	var signals []*models.DBSignal

	query := s.db.Where("symbol = ?", normalizeSymbol(symbol)).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&signals).Error; err != nil {
		return nil, fmt.Errorf("failed to get signals: %w", err)
	}
	return signals, nil
}

// AddWatchlistItem adds a symbol to the watchlist
func (s *LocalStorage) AddWatchlistItem(symbol, notes string) (*models.DBWatchlistItem, error) {
	symbol = normalizeSymbol(symbol)

	var count int64
	if err := s.db.Model(&models.DBWatchlistItem{}).Where("symbol = ?", symbol).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check watchlist: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrAlreadyExists)
	}

	item := &models.DBWatchlistItem{
		Symbol:  symbol,
		AddedAt: time.Now(),
		Notes:   notes,
	}
	if err := s.db.Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to add watchlist item: %w", err)
	}
	return item, nil
}

// RemoveWatchlistItem deletes a symbol from the watchlist
func (s *LocalStorage) RemoveWatchlistItem(symbol string) error {
	result := s.db.Unscoped().Where("symbol = ?", normalizeSymbol(symbol)).Delete(&models.DBWatchlistItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove watchlist item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	return nil
}

// ListWatchlist returns the watchlist ordered by symbol
func (s *LocalStorage) ListWatchlist() ([]*models.DBWatchlistItem, error) {
	var items []*models.DBWatchlistItem
	if err := s.db.Order("symbol ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return items, nil
}

// GetSettings returns the settings row, creating it with defaults on first use
func (s *LocalStorage) GetSettings() (*models.DBSettings, error) {
	var settings models.DBSettings
	if err := s.db.Attrs(models.DefaultSettings()).FirstOrCreate(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings persists the settings row
func (s *LocalStorage) SaveSettings(settings *models.DBSettings) error {
	if err := s.db.Save(settings).Error; err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// CleanupOldData removes snapshots and signals older than the specified time
func (s *LocalStorage) CleanupOldData(before time.Time) error {
	s.logger.WithField("before", before).Info("Cleaning up old data")

	if err := s.db.Unscoped().Where("snapshot_time < ?", before).Delete(&models.DBAccountSnapshot{}).Error; err != nil {
		return fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	if err := s.db.Unscoped().Where("created_at < ?", before).Delete(&models.DBSignal{}).Error; err != nil {
		return fmt.Errorf("failed to delete old signals: %w", err)
	}

	s.logger.Info("Old data cleaned up successfully")
	return nil
}

// Close closes the database connection
func (s *LocalStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func tradeToDB(trade *interfaces.Trade) *models.DBTrade {
	dbTrade := &models.DBTrade{
		Symbol:       normalizeSymbol(trade.Symbol),
		TradeType:    string(trade.TradeType),
		Quantity:     trade.Quantity,
		Price:        trade.Price,
		OptionStrike: trade.OptionStrike,
		OptionExpiry: trade.OptionExpiry,
		Status:       string(trade.Status),
		Timestamp:    trade.Timestamp,
		ClosedAt:     trade.ClosedAt,
		ProfitLoss:   trade.ProfitLoss,
	}
	return dbTrade
}

func dbToTrade(dbTrade *models.DBTrade) *interfaces.Trade {
	return &interfaces.Trade{
		ID:           dbTrade.ID,
		Symbol:       dbTrade.Symbol,
		TradeType:    interfaces.TradeType(dbTrade.TradeType),
		Quantity:     dbTrade.Quantity,
		Price:        dbTrade.Price,
		OptionStrike: dbTrade.OptionStrike,
		OptionExpiry: dbTrade.OptionExpiry,
		Status:       interfaces.TradeStatus(dbTrade.Status),
		ProfitLoss:   dbTrade.ProfitLoss,
		Timestamp:    dbTrade.Timestamp,
		ClosedAt:     dbTrade.ClosedAt,
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
