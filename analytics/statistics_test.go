package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbion-trader/interfaces"
)

func closedTrade(symbol string, pl string) interfaces.Trade {
	closedAt := time.Date(2026, 10, 10, 20, 0, 0, 0, time.UTC)
	return interfaces.Trade{
		Symbol:     symbol,
		TradeType:  interfaces.TradeTypeSellStock,
		Quantity:   100,
		Price:      dec("50"),
		Status:     interfaces.TradeStatusClosed,
		ProfitLoss: decPtr(pl),
		Timestamp:  closedAt.AddDate(0, 0, -20),
		ClosedAt:   &closedAt,
	}
}

func TestEmptyCollection(t *testing.T) {
	if got := TotalCount(nil); got != 0 {
		t.Fatalf("total=%d want=0", got)
	}
	if got := ProfitablePct(nil); !got.IsZero() {
		t.Fatalf("profitable=%s want=0", got)
	}
	if got := PremiumCollected(nil); !got.IsZero() {
		t.Fatalf("premium=%s want=0", got)
	}
	if got := AvgReturnClosed(nil); !got.IsZero() {
		t.Fatalf("avg=%s want=0", got)
	}
}

func TestProfitablePct(t *testing.T) {
	trades := []interfaces.Trade{
		closedTrade("A", "5"),
		closedTrade("B", "0"),
		closedTrade("C", "-2.5"),
		closedTrade("D", "1"),
		coveredCall("E", "1.00", 100), // no profit/loss recorded, ignored
	}
	got := ProfitablePct(trades)
	if !got.Equal(dec("75")) {
		t.Fatalf("profitable=%s want=75", got)
	}
	if got.LessThan(decimal.Zero) || got.GreaterThan(dec("100")) {
		t.Fatalf("profitable=%s outside [0,100]", got)
	}
}

func TestPremiumCollected_IgnoresNonOptionTrades(t *testing.T) {
	trades := []interfaces.Trade{
		coveredCall("AAPL", "3.45", 100),
		coveredCall("MSFT", "2.10", 200),
		closedTrade("KO", "3"),
	}
	got := PremiumCollected(trades)
	if !got.Equal(dec("7.65")) {
		t.Fatalf("premium=%s want=7.65", got)
	}
}

func TestPremiumCollected_Additive(t *testing.T) {
	a := []interfaces.Trade{coveredCall("AAPL", "3.45", 100), coveredCall("AMD", "0.33", 300)}
	b := []interfaces.Trade{coveredCall("T", "0.07", 1000), closedTrade("KO", "1")}

	union := append(append([]interfaces.Trade{}, a...), b...)
	sum := PremiumCollected(a).Add(PremiumCollected(b))
	if got := PremiumCollected(union); !got.Equal(sum) {
		t.Fatalf("premium(A∪B)=%s want=%s", got, sum)
	}
}

func TestAvgReturnClosed(t *testing.T) {
	open := coveredCall("AAPL", "1", 100)
	trades := []interfaces.Trade{closedTrade("A", "4"), closedTrade("B", "-1"), closedTrade("C", "3.5"), open}
	got := AvgReturnClosed(trades)
	if !Round2(got).Equal(dec("2.17")) {
		t.Fatalf("avg=%s want≈2.17", got)
	}
}

func TestSummarize_SkipsMalformedRecords(t *testing.T) {
	broken := coveredCall("BAD", "9.99", 100)
	broken.OptionStrike = nil

	trades := []interfaces.Trade{
		coveredCall("AAPL", "3.45", 100),
		broken,
		closedTrade("KO", "2"),
	}
	summary, issues := Summarize(trades)
	if len(issues) != 1 || issues[0].Index != 1 || issues[0].Symbol != "BAD" {
		t.Fatalf("issues=%+v want one issue for index 1", issues)
	}
	if summary.TotalTrades != 2 || summary.Skipped != 1 {
		t.Fatalf("total=%d skipped=%d want 2/1", summary.TotalTrades, summary.Skipped)
	}
	if !summary.PremiumCollected.Equal(dec("3.45")) {
		t.Fatalf("premium=%s want=3.45", summary.PremiumCollected)
	}
	if !summary.ProfitablePct.Equal(dec("100")) {
		t.Fatalf("profitable=%s want=100", summary.ProfitablePct)
	}
	if !summary.AvgReturnClosed.Equal(dec("2")) {
		t.Fatalf("avg=%s want=2", summary.AvgReturnClosed)
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	trades := []interfaces.Trade{coveredCall("AAPL", "3.45", 100), closedTrade("KO", "-1.25")}
	first, _ := Summarize(trades)
	second, _ := Summarize(trades)
	if first.TotalTrades != second.TotalTrades ||
		!first.ProfitablePct.Equal(second.ProfitablePct) ||
		!first.PremiumCollected.Equal(second.PremiumCollected) ||
		!first.AvgReturnClosed.Equal(second.AvgReturnClosed) {
		t.Fatalf("summaries differ: %+v vs %+v", first, second)
	}
}

func TestTradeFilter(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	recent := coveredCall("aapl", "1", 100)
	recent.Timestamp = now.AddDate(0, 0, -3)
	old := closedTrade("MSFT", "2")
	old.Timestamp = now.AddDate(0, 0, -90)
	stock := interfaces.Trade{Symbol: "AMZN", TradeType: interfaces.TradeTypeBuyStock, Status: interfaces.TradeStatusOpen, Timestamp: now.AddDate(0, 0, -10)}
	trades := []interfaces.Trade{recent, old, stock}

	cases := []struct {
		name   string
		filter TradeFilter
		want   []string
	}{
		{"all", TradeFilter{TradeType: FilterAll, Status: FilterAll, Now: now}, []string{"aapl", "MSFT", "AMZN"}},
		{"type", TradeFilter{TradeType: "COVERED_CALL", Now: now}, []string{"aapl"}},
		{"status", TradeFilter{Status: "CLOSED", Now: now}, []string{"MSFT"}},
		{"lookback", TradeFilter{LookbackDays: 30, Now: now}, []string{"aapl", "AMZN"}},
		{"symbol case-insensitive", TradeFilter{Symbol: "AaP", Now: now}, []string{"aapl"}},
		{"composed", TradeFilter{TradeType: "BUY_STOCK", LookbackDays: 7, Now: now}, nil},
		{"century lookback", TradeFilter{LookbackDays: 36500, Now: now}, []string{"aapl", "MSFT", "AMZN"}},
		{"huge lookback is all time", TradeFilter{LookbackDays: 200000, Now: now}, []string{"aapl", "MSFT", "AMZN"}},
		{"int overflow lookback", TradeFilter{LookbackDays: 10_000_000, Now: now}, []string{"aapl", "MSFT", "AMZN"}},
	}
	for _, c := range cases {
		got := c.filter.Apply(trades)
		if len(got) != len(c.want) {
			t.Fatalf("%s: got %d trades want %d", c.name, len(got), len(c.want))
		}
		for i := range got {
			if got[i].Symbol != c.want[i] {
				t.Fatalf("%s: got[%d]=%s want %s", c.name, i, got[i].Symbol, c.want[i])
			}
		}
	}
}
