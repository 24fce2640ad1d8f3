package analytics

import (
	"fmt"

	"github.com/shopspring/decimal"

	"arbion-trader/interfaces"
)

// DefaultPositionTolerance absorbs broker-side cent rounding on market value and P/L.
var DefaultPositionTolerance = decimal.NewFromFloat(0.01)

// ValidatePosition checks market_value == qty*current_price and
// unrealized_pl == market_value - qty*avg_entry_price within tolerance.
func ValidatePosition(p interfaces.Position, tolerance decimal.Decimal) error {
	expectedValue := p.Qty.Mul(p.CurrentPrice)
	if p.MarketValue.Sub(expectedValue).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%w: %s market value %s, expected %s",
			ErrMalformedRecord, p.Symbol, p.MarketValue, expectedValue)
	}
	expectedPL := p.MarketValue.Sub(p.Qty.Mul(p.AvgEntryPrice))
	if p.UnrealizedPL.Sub(expectedPL).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%w: %s unrealized P/L %s, expected %s",
			ErrMalformedRecord, p.Symbol, p.UnrealizedPL, expectedPL)
	}
	return nil
}
