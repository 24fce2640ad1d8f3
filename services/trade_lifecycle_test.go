package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
)

var lifecycleNow = time.Date(2025, 6, 20, 21, 0, 0, 0, time.UTC)

func seedLifecycle(t *testing.T, store *memStore) (expiring, live, stock *interfaces.Trade) {
	t.Helper()
	expiring = &interfaces.Trade{
		Symbol: "TSLA", TradeType: interfaces.TradeTypeCoveredCall, Quantity: 100,
		Price: decimal.NewFromInt(4), OptionStrike: decPtr("300"),
		OptionExpiry: timePtr(lifecycleNow.Add(-time.Hour)), Status: interfaces.TradeStatusOpen,
		Timestamp: lifecycleNow.AddDate(0, 0, -30),
	}
	live = &interfaces.Trade{
		Symbol: "AAPL", TradeType: interfaces.TradeTypeCoveredCall, Quantity: 100,
		Price: decimal.NewFromInt(2), OptionStrike: decPtr("105"),
		OptionExpiry: timePtr(lifecycleNow.AddDate(0, 0, 20)), Status: interfaces.TradeStatusOpen,
		Timestamp: lifecycleNow.AddDate(0, 0, -10),
	}
	stock = &interfaces.Trade{
		Symbol: "AAPL", TradeType: interfaces.TradeTypeBuyStock, Quantity: 100,
		Price: decimal.NewFromInt(100), Status: interfaces.TradeStatusOpen,
		Timestamp: lifecycleNow.AddDate(0, 0, -10),
	}
	for _, trade := range []*interfaces.Trade{expiring, live, stock} {
		if err := store.CreateTrade(trade); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return expiring, live, stock
}

func TestLifecycleRun(t *testing.T) {
	store := newMemStore()
	expiring, live, stock := seedLifecycle(t, store)
	broker := &fakeBroker{
		account: &interfaces.Account{ID: "acct", Cash: decimal.NewFromInt(5000)},
		positions: []*interfaces.Position{{
			Symbol: "AAPL", Qty: decimal.NewFromInt(100), AvgEntryPrice: decimal.NewFromInt(100),
			CurrentPrice: decimal.NewFromInt(96), MarketValue: decimal.NewFromInt(9600),
			CostBasis: decimal.NewFromInt(10000), UnrealizedPL: decimal.NewFromInt(-400),
		}},
	}
	journal := NewActivityLogger(t.TempDir())
	journal.now = func() time.Time { return lifecycleNow }

	svc := NewTradeLifecycleService(store, broker, journal)
	svc.now = func() time.Time { return lifecycleNow }

	if svc.LastReport() != nil {
		t.Fatalf("report before first run should be nil")
	}
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(report.Expired) != 1 || report.Expired[0] != expiring.ID {
		t.Fatalf("expired=%v want=[%d]", report.Expired, expiring.ID)
	}
	if got, _ := store.GetTrade(expiring.ID); got.Status != interfaces.TradeStatusExpired {
		t.Fatalf("status=%s want=EXPIRED", got.Status)
	}
	for _, id := range []uint{live.ID, stock.ID} {
		if got, _ := store.GetTrade(id); got.Status != interfaces.TradeStatusOpen {
			t.Fatalf("trade %d status=%s want=OPEN", id, got.Status)
		}
	}

	if !report.AccountSaved || report.PositionsSaved != 1 || len(store.accounts) != 1 {
		t.Fatalf("report=%+v accounts=%d", report, len(store.accounts))
	}
	if len(report.Adjustments) != 1 || report.Adjustments[0].TradeID != live.ID || report.Adjustments[0].Action != AdjustBuyToClose {
		t.Fatalf("adjustments=%+v", report.Adjustments)
	}

	log := journal.GetCurrentLog()
	if len(log.Transitions) != 1 || log.Transitions[0].From != "OPEN" || log.Transitions[0].To != "EXPIRED" {
		t.Fatalf("transitions=%+v", log.Transitions)
	}
	if len(log.Adjustments) != 1 {
		t.Fatalf("journal adjustments=%d want=1", len(log.Adjustments))
	}
	if svc.LastReport() != report {
		t.Fatalf("last report not kept")
	}
}

func TestLifecycleBrokerDown(t *testing.T) {
	store := newMemStore()
	expiring, _, _ := seedLifecycle(t, store)
	svc := NewTradeLifecycleService(store, &fakeBroker{accountErr: errors.New("503")}, nil)
	svc.now = func() time.Time { return lifecycleNow }

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Expired) != 1 || report.Expired[0] != expiring.ID {
		t.Fatalf("expired=%v", report.Expired)
	}
	if report.BrokerError == "" || report.AccountSaved || len(report.Adjustments) != 0 {
		t.Fatalf("report=%+v want broker error only", report)
	}
}
