package services

import (
	"errors"
	"testing"
	"time"

	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
)

func TestActivityLoggerSummary(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)
	al := NewActivityLogger(dir)
	al.now = func() time.Time { return now }

	trade := interfaces.Trade{ID: 1, Symbol: "AAPL", TradeType: interfaces.TradeTypeCoveredCall, Quantity: 100, Price: decimal.RequireFromString("2.5")}
	if err := al.LogTradeRecorded(trade, decimal.RequireFromString("2.5")); err != nil {
		t.Fatalf("log recorded: %v", err)
	}

	trade.ProfitLoss = decPtr("-2")
	if err := al.LogTradeClosed(trade, 12); err != nil {
		t.Fatalf("log closed: %v", err)
	}
	win := trade
	win.ProfitLoss = decPtr("4.5")
	if err := al.LogTradeClosed(win, 30); err != nil {
		t.Fatalf("log closed: %v", err)
	}
	if err := al.LogTransition(trade, interfaces.TradeStatusExpired, "expired"); err != nil {
		t.Fatalf("log transition: %v", err)
	}

	summary := al.GetCurrentLog().Summary
	if summary.TradesRecorded != 1 || summary.PremiumRecorded != 2.5 {
		t.Fatalf("summary=%+v", summary)
	}
	if summary.TradesClosed != 2 || summary.WinningTrades != 1 || summary.LosingTrades != 1 {
		t.Fatalf("summary=%+v", summary)
	}
	if summary.LargestWinPct != 4.5 || summary.LargestLossPct != -2 {
		t.Fatalf("largest win=%v loss=%v", summary.LargestWinPct, summary.LargestLossPct)
	}
	if summary.ContractsExpired != 1 {
		t.Fatalf("expired=%d want=1", summary.ContractsExpired)
	}

	// a restarted logger picks up today's file
	reloaded := NewActivityLogger(dir)
	reloaded.now = func() time.Time { return now.Add(time.Hour) }
	if got := reloaded.GetCurrentLog().Summary.TradesClosed; got != 2 {
		t.Fatalf("reloaded trades closed=%d want=2", got)
	}
}

func TestActivityLoggerDates(t *testing.T) {
	dir := t.TempDir()
	al := NewActivityLogger(dir)

	for _, day := range []int{3, 5, 4} {
		at := time.Date(2025, 4, day, 12, 0, 0, 0, time.UTC)
		al.now = func() time.Time { return at }
		if err := al.LogActivity("SYSTEM", "START", "", "", nil); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	dates, err := al.ListAvailableLogs()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"2025-04-05", "2025-04-04", "2025-04-03"}
	if len(dates) != len(want) {
		t.Fatalf("dates=%v want=%v", dates, want)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("dates=%v want=%v", dates, want)
		}
	}

	log, err := al.GetLogForDate("2025-04-03")
	if err != nil || len(log.Activities) != 1 {
		t.Fatalf("log=%+v err=%v", log, err)
	}
	if _, err := al.GetLogForDate("2025-04-06"); !errors.Is(err, ErrLogNotFound) {
		t.Fatalf("err=%v want=ErrLogNotFound", err)
	}
	if _, err := al.GetLogForDate("../etc/passwd"); err == nil || errors.Is(err, ErrLogNotFound) {
		t.Fatalf("err=%v want invalid date", err)
	}
}
