package services

import (
	"context"
	"fmt"
	"time"

	"arbion-trader/interfaces"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AlpacaBroker reads account state and daily bars through the Alpaca SDK
type AlpacaBroker struct {
	trading *alpaca.Client
	data    *marketdata.Client
	logger  *logrus.Logger
}

// NewAlpacaBroker creates a broker backed by the Alpaca trading and market data clients
func NewAlpacaBroker(apiKey, secretKey, baseURL, dataURL string) *AlpacaBroker {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &AlpacaBroker{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: secretKey,
			BaseURL:   baseURL,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: secretKey,
			BaseURL:   dataURL,
		}),
		logger: logger,
	}
}

// GetAccount retrieves account information
func (b *AlpacaBroker) GetAccount(ctx context.Context) (*interfaces.Account, error) {
	acct, err := b.trading.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &interfaces.Account{
		ID:               acct.ID,
		Cash:             acct.Cash,
		PortfolioValue:   acct.Equity,
		BuyingPower:      acct.BuyingPower,
		DayTradeCount:    int(acct.DaytradeCount),
		PatternDayTrader: acct.PatternDayTrader,
	}, nil
}

// GetPositions retrieves all open positions
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]*interfaces.Position, error) {
	positions, err := b.trading.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	result := make([]*interfaces.Position, 0, len(positions))
	for _, p := range positions {
		result = append(result, &interfaces.Position{
			Symbol:         p.Symbol,
			Qty:            p.Qty,
			AvgEntryPrice:  p.AvgEntryPrice,
			CurrentPrice:   decimalOrZero(p.CurrentPrice),
			MarketValue:    decimalOrZero(p.MarketValue),
			CostBasis:      p.CostBasis,
			UnrealizedPL:   decimalOrZero(p.UnrealizedPL),
			UnrealizedPLPC: decimalOrZero(p.UnrealizedPLPC),
			Side:           p.Side,
		})
	}

	b.logger.WithField("count", len(result)).Debug("Fetched positions")
	return result, nil
}

// GetHistoricalBars retrieves daily bars between start and end, oldest first
func (b *AlpacaBroker) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]*interfaces.Bar, error) {
	bars, err := b.data.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	result := make([]*interfaces.Bar, len(bars))
	for i, bar := range bars {
		result[i] = &interfaces.Bar{
			Symbol:    symbol,
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    int64(bar.Volume),
			VWAP:      bar.VWAP,
		}
	}
	return result, nil
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
