package analytics

import (
	"strings"
	"time"

	"arbion-trader/interfaces"
)

// FilterAll matches every value of a type or status filter.
const FilterAll = "All"

// MaxLookbackDays is the longest window honored; anything larger means all time.
const MaxLookbackDays = 100 * 365

// TradeFilter narrows a trade history before aggregation. Criteria are ANDed.
type TradeFilter struct {
	TradeType    string    `json:"trade_type"` // exact match, "" or "All" for any
	Status       string    `json:"status"`     // exact match, "" or "All" for any
	LookbackDays int       `json:"days"`       // 0 for all time
	Symbol       string    `json:"symbol"`     // case-insensitive substring
	Now          time.Time `json:"-"`
}

// Matches reports whether t passes every criterion.
func (f TradeFilter) Matches(t interfaces.Trade) bool {
	if !matchesExact(f.TradeType, string(t.TradeType)) {
		return false
	}
	if !matchesExact(f.Status, string(t.Status)) {
		return false
	}
	if f.LookbackDays > 0 && f.LookbackDays <= MaxLookbackDays {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		cutoff := now.AddDate(0, 0, -f.LookbackDays)
		if t.Timestamp.Before(cutoff) {
			return false
		}
	}
	if f.Symbol != "" && !strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(strings.TrimSpace(f.Symbol))) {
		return false
	}
	return true
}

// Apply returns the matching trades in their original order.
func (f TradeFilter) Apply(trades []interfaces.Trade) []interfaces.Trade {
	out := make([]interfaces.Trade, 0, len(trades))
	for _, t := range trades {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

func matchesExact(want, got string) bool {
	return want == "" || want == FilterAll || want == got
}
