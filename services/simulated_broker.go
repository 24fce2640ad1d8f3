package services

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
)

var simulatedHoldings = []string{"AAPL", "MSFT", "GOOG", "AMZN", "JPM", "JNJ", "V", "PG", "UNH", "HD"}

// SimulatedBroker produces deterministic account data and prices seeded by symbol.
// Used when no broker credentials are configured.
type SimulatedBroker struct {
	now func() time.Time
}

// NewSimulatedBroker creates a simulated broker
func NewSimulatedBroker() *SimulatedBroker {
	return &SimulatedBroker{now: time.Now}
}

// GetAccount returns a fixed paper account
func (b *SimulatedBroker) GetAccount(ctx context.Context) (*interfaces.Account, error) {
	positions, _ := b.GetPositions(ctx)
	cash := decimal.NewFromInt(50000)
	value := cash
	for _, p := range positions {
		value = value.Add(p.MarketValue)
	}

	return &interfaces.Account{
		ID:             "SIMULATED",
		Cash:           cash,
		PortfolioValue: value,
		BuyingPower:    cash.Mul(decimal.NewFromInt(2)),
	}, nil
}

// GetPositions returns a stable set of long positions priced from the simulated bars
func (b *SimulatedBroker) GetPositions(ctx context.Context) ([]*interfaces.Position, error) {
	now := b.now()
	positions := make([]*interfaces.Position, 0, 4)

	for i, symbol := range simulatedHoldings {
		if i%3 != 0 {
			continue
		}
		seed := symbolSeed(symbol)
		rng := rand.New(rand.NewSource(seed))

		bars := simulateBars(symbol, now.AddDate(0, 0, -5), now)
		if len(bars) == 0 {
			continue
		}

		qty := decimal.NewFromInt(int64(rng.Intn(20)+1) * 10)
		current := decimal.NewFromFloat(bars[len(bars)-1].Close).Round(2)
		entry := current.Mul(decimal.NewFromFloat(0.85 + rng.Float64()*0.3)).Round(2)

		marketValue := current.Mul(qty)
		costBasis := entry.Mul(qty)
		unrealized := marketValue.Sub(costBasis)

		positions = append(positions, &interfaces.Position{
			Symbol:         symbol,
			Qty:            qty,
			AvgEntryPrice:  entry,
			CurrentPrice:   current,
			MarketValue:    marketValue,
			CostBasis:      costBasis,
			UnrealizedPL:   unrealized,
			UnrealizedPLPC: unrealized.Div(costBasis).Round(4),
			Side:           "long",
		})
	}
	return positions, nil
}

// GetHistoricalBars returns a seeded random walk of daily bars on weekdays
func (b *SimulatedBroker) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]*interfaces.Bar, error) {
	return simulateBars(strings.ToUpper(symbol), start, end), nil
}

// simulateBars walks from a symbol-derived base price. The walk is anchored at a fixed
// epoch so overlapping ranges agree on the same day's prices.
func simulateBars(symbol string, start, end time.Time) []*interfaces.Bar {
	seed := symbolSeed(symbol)
	rng := rand.New(rand.NewSource(seed))

	base := float64(seed%1000) + 10
	price := base
	vol := 0.01 + rng.Float64()*0.025

	epoch := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	startDay := truncateDay(start)
	endDay := truncateDay(end)

	var bars []*interfaces.Bar
	for day := epoch; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		open := price
		// mean reversion toward base keeps long walks in a plausible range
		change := 0.02*math.Log(base/price) + vol*rng.NormFloat64()
		price = math.Max(1, price*(1+change))
		high := math.Max(open, price) * (1 + rng.Float64()*vol/2)
		low := math.Min(open, price) * (1 - rng.Float64()*vol/2)
		volume := int64(100000 + rng.Intn(9900000))

		if day.Before(startDay) {
			continue
		}
		bars = append(bars, &interfaces.Bar{
			Symbol:    symbol,
			Timestamp: day,
			Open:      round2(open),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(price),
			Volume:    volume,
			VWAP:      round2((high + low + price) / 3),
		})
	}
	return bars
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64() % 10000)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
