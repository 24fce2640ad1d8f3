package analytics

import (
	"github.com/shopspring/decimal"

	"arbion-trader/interfaces"
)

// Summary holds the dashboard statistics for a set of trades
type Summary struct {
	TotalTrades      int             `json:"total_trades"`
	ProfitablePct    decimal.Decimal `json:"profitable_pct"`
	PremiumCollected decimal.Decimal `json:"premium_collected"`
	AvgReturnClosed  decimal.Decimal `json:"avg_return_closed"`
	Skipped          int             `json:"skipped"`
}

// Rounded returns a copy with every figure rounded for display.
func (s Summary) Rounded() Summary {
	s.ProfitablePct = Round2(s.ProfitablePct)
	s.PremiumCollected = Round2(s.PremiumCollected)
	s.AvgReturnClosed = Round2(s.AvgReturnClosed)
	return s
}

// RecordIssue describes a record skipped during aggregation
type RecordIssue struct {
	Index  int    `json:"index"`
	ID     uint   `json:"id,omitempty"`
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// TotalCount returns the number of trades.
func TotalCount(trades []interfaces.Trade) int {
	return len(trades)
}

// ProfitablePct returns the share of trades with a recorded profit/loss that is >= 0.
func ProfitablePct(trades []interfaces.Trade) decimal.Decimal {
	withPL, profitable := 0, 0
	for _, t := range trades {
		if t.ProfitLoss == nil {
			continue
		}
		withPL++
		if !t.ProfitLoss.IsNegative() {
			profitable++
		}
	}
	if withPL == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(profitable)).Mul(hundred).Div(decimal.NewFromInt(int64(withPL)))
}

// PremiumCollected sums PremiumTotal over covered calls. Other trade types and
// malformed covered calls contribute nothing.
func PremiumCollected(trades []interfaces.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		if t.TradeType != interfaces.TradeTypeCoveredCall {
			continue
		}
		premium, err := PremiumTotal(t)
		if err != nil {
			continue
		}
		total = total.Add(premium)
	}
	return total
}

// AvgReturnClosed averages profit/loss over closed trades that carry one.
func AvgReturnClosed(trades []interfaces.Trade) decimal.Decimal {
	sum := decimal.Zero
	n := 0
	for _, t := range trades {
		if t.Status != interfaces.TradeStatusClosed || t.ProfitLoss == nil {
			continue
		}
		sum = sum.Add(*t.ProfitLoss)
		n++
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}

// Summarize validates every record, reports the malformed ones, and computes the
// four statistics over the rest.
func Summarize(trades []interfaces.Trade) (Summary, []RecordIssue) {
	valid := make([]interfaces.Trade, 0, len(trades))
	var issues []RecordIssue
	for i, t := range trades {
		if err := ValidateTrade(t); err != nil {
			issues = append(issues, RecordIssue{Index: i, ID: t.ID, Symbol: t.Symbol, Error: err.Error()})
			continue
		}
		valid = append(valid, t)
	}

	return Summary{
		TotalTrades:      TotalCount(valid),
		ProfitablePct:    ProfitablePct(valid),
		PremiumCollected: PremiumCollected(valid),
		AvgReturnClosed:  AvgReturnClosed(valid),
		Skipped:          len(issues),
	}, issues
}
