package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
)

func TestRecordTrade(t *testing.T) {
	store := newMemStore()
	journal := NewActivityLogger(t.TempDir())
	svc := NewTradeService(store, journal)
	now := time.Date(2025, 2, 3, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	trade, err := svc.RecordTrade(context.Background(), TradeRequest{
		Symbol:       " aapl ",
		TradeType:    "covered_call",
		Quantity:     200,
		Price:        decimal.RequireFromString("3.10"),
		OptionStrike: decPtr("200"),
		OptionExpiry: timePtr(now.AddDate(0, 0, 30)),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if trade.ID == 0 || trade.Symbol != "AAPL" || trade.Status != interfaces.TradeStatusOpen {
		t.Fatalf("trade=%+v", trade)
	}
	if !trade.Timestamp.Equal(now) {
		t.Fatalf("timestamp=%s want=%s", trade.Timestamp, now)
	}

	summary := journal.GetCurrentLog().Summary
	if summary.TradesRecorded != 1 || summary.PremiumRecorded != 6.2 {
		t.Fatalf("journal summary=%+v want 1 trade and 6.2 premium", summary)
	}
}

func TestRecordTradeRejectsBadInput(t *testing.T) {
	svc := NewTradeService(newMemStore(), nil)
	expiry := time.Now().AddDate(0, 0, 30)

	cases := []struct {
		name string
		req  TradeRequest
	}{
		{"unknown type", TradeRequest{Symbol: "AAPL", TradeType: "STRADDLE", Quantity: 1, Price: decimal.NewFromInt(1)}},
		{"blank symbol", TradeRequest{Symbol: " ", TradeType: "BUY_STOCK", Quantity: 1, Price: decimal.NewFromInt(1)}},
		{"zero quantity", TradeRequest{Symbol: "AAPL", TradeType: "BUY_STOCK", Quantity: 0, Price: decimal.NewFromInt(1)}},
		{"negative price", TradeRequest{Symbol: "AAPL", TradeType: "BUY_STOCK", Quantity: 1, Price: decimal.NewFromInt(-1)}},
		{"call without strike", TradeRequest{Symbol: "AAPL", TradeType: "COVERED_CALL", Quantity: 1, Price: decimal.NewFromInt(1), OptionExpiry: &expiry}},
	}
	for _, c := range cases {
		if _, err := svc.RecordTrade(context.Background(), c.req); !errors.Is(err, ErrInvalidTrade) {
			t.Errorf("%s: err=%v want=ErrInvalidTrade", c.name, err)
		}
	}
}

func TestCloseTrade(t *testing.T) {
	store := newMemStore()
	journal := NewActivityLogger(t.TempDir())
	svc := NewTradeService(store, journal)
	opened := time.Date(2025, 2, 3, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return opened }

	trade, err := svc.RecordTrade(context.Background(), TradeRequest{
		Symbol: "MSFT", TradeType: "BUY_STOCK", Quantity: 10, Price: decimal.RequireFromString("400"),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	svc.now = func() time.Time { return opened.AddDate(0, 0, 12) }
	closed, err := svc.CloseTrade(context.Background(), trade.ID, decimal.RequireFromString("3.5"))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != interfaces.TradeStatusClosed || closed.ProfitLoss.String() != "3.5" {
		t.Fatalf("closed=%+v", closed)
	}

	log := journal.GetCurrentLog()
	if len(log.TradesClosed) != 1 || log.TradesClosed[0].HoldDays != 12 {
		t.Fatalf("journal closed=%+v want hold 12 days", log.TradesClosed)
	}

	if _, err := svc.CloseTrade(context.Background(), trade.ID, decimal.Zero); !errors.Is(err, ErrInvalidTrade) {
		t.Fatalf("second close err=%v want=ErrInvalidTrade", err)
	}
	if _, err := svc.CloseTrade(context.Background(), 999, decimal.Zero); !errors.Is(err, errNotFound) {
		t.Fatalf("unknown close err=%v want not found", err)
	}
}
