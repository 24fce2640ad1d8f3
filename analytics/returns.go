package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"arbion-trader/interfaces"
)

var (
	hundred     = decimal.NewFromInt(100)
	daysPerYear = decimal.NewFromInt(365)
)

const day = 24 * time.Hour

// ValidateTrade checks the paired-field invariants of a trade record.
func ValidateTrade(t interfaces.Trade) error {
	hasStrike := t.OptionStrike != nil
	hasExpiry := t.OptionExpiry != nil
	if hasStrike != hasExpiry {
		return fmt.Errorf("%w: %s option strike and expiry must be set together", ErrMalformedRecord, t.Symbol)
	}
	if t.TradeType == interfaces.TradeTypeCoveredCall && !hasStrike {
		return fmt.Errorf("%w: %s covered call without strike/expiry", ErrMalformedRecord, t.Symbol)
	}
	if t.ProfitLoss != nil && t.Status != interfaces.TradeStatusClosed {
		return fmt.Errorf("%w: %s profit/loss on a %s trade", ErrMalformedRecord, t.Symbol, t.Status)
	}
	return nil
}

// PremiumTotal returns price * quantity / 100 for a covered call.
// The option price is quoted per share while a contract controls 100 shares.
func PremiumTotal(t interfaces.Trade) (decimal.Decimal, error) {
	if t.TradeType != interfaces.TradeTypeCoveredCall {
		return decimal.Zero, fmt.Errorf("%w: premium requires %s, got %s",
			ErrInvalidTradeKind, interfaces.TradeTypeCoveredCall, t.TradeType)
	}
	if err := ValidateTrade(t); err != nil {
		return decimal.Zero, err
	}
	return t.Price.Mul(decimal.NewFromInt(t.Quantity)).Div(hundred), nil
}

// SimpleReturnPct returns premium / entryPrice * 100.
func SimpleReturnPct(entryPrice, premium decimal.Decimal) (decimal.Decimal, error) {
	if entryPrice.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	return premium.Mul(hundred).Div(entryPrice), nil
}

// AnnualizedReturnPct projects a simple return over holdingDays to a 365-day rate.
// Callers with same-day expiries should pass HoldingDaysFloor(days).
func AnnualizedReturnPct(simpleReturnPct decimal.Decimal, holdingDays int) (decimal.Decimal, error) {
	if holdingDays <= 0 {
		return decimal.Zero, fmt.Errorf("%w: holding days %d", ErrInvalidDuration, holdingDays)
	}
	return simpleReturnPct.Mul(daysPerYear).Div(decimal.NewFromInt(int64(holdingDays))), nil
}

// HoldingDaysFloor clamps a holding period to at least one day.
func HoldingDaysFloor(days int) int {
	if days < 1 {
		return 1
	}
	return days
}

// HoldingDays counts whole days between opened and closed, rounded up and floored at 1.
func HoldingDays(opened, closed time.Time) int {
	return HoldingDaysFloor(DaysToExpiry(closed, opened))
}

// DaysToExpiry returns the whole days remaining until expiry, rounded up.
// It is 0 once the expiry has passed.
func DaysToExpiry(expiry, asOf time.Time) int {
	remaining := expiry.Sub(asOf)
	if remaining <= 0 {
		return 0
	}
	days := remaining / day
	if remaining%day != 0 {
		days++
	}
	return int(days)
}

// Round2 rounds for presentation. Never call it before aggregation.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
