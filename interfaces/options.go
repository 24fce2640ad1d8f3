package interfaces

import (
	"time"
)

// OptionContract represents an option contract
type OptionContract struct {
	Symbol            string    `json:"symbol"`            // OCC symbol (e.g., "AAPL231215C00150000")
	UnderlyingSymbol  string    `json:"underlying_symbol"`
	ContractType      string    `json:"contract_type"`     // "call" or "put"
	StrikePrice       float64   `json:"strike_price"`
	ExpirationDate    time.Time `json:"expiration_date"`
	Premium           float64   `json:"premium"`           // mid price per share
	Bid               float64   `json:"bid"`
	Ask               float64   `json:"ask"`
	OpenInterest      int64     `json:"open_interest"`
	ImpliedVolatility float64   `json:"implied_volatility"`
	Delta             float64   `json:"delta"`
	Gamma             float64   `json:"gamma"`
	Theta             float64   `json:"theta"`
	Vega              float64   `json:"vega"`
	DTE               int       `json:"dte"`
	Theoretical       bool      `json:"theoretical,omitempty"`
}

// CallCandidate is a call scored for a covered-call write against a given spot price
type CallCandidate struct {
	Contract         *OptionContract `json:"contract"`
	PremiumPercent   float64         `json:"premium_percent"`
	StrikePercent    float64         `json:"strike_percent"`
	AnnualizedReturn float64         `json:"annualized_return"`
	Score            float64         `json:"score"`
}

// SpreadCandidate is a multi-leg credit position scored against a given spot price.
// Short and long put legs are set for put credit spreads; iron condors also carry call legs.
type SpreadCandidate struct {
	ShortPut         *OptionContract `json:"short_put,omitempty"`
	LongPut          *OptionContract `json:"long_put,omitempty"`
	ShortCall        *OptionContract `json:"short_call,omitempty"`
	LongCall         *OptionContract `json:"long_call,omitempty"`
	NetCredit        float64         `json:"net_credit"`
	MaxRisk          float64         `json:"max_risk"`
	DTE              int             `json:"dte"`
	AnnualizedReturn float64         `json:"annualized_return"` // on max risk
	Score            float64         `json:"score"`
}

// Legs returns the set legs, puts before calls
func (c *SpreadCandidate) Legs() []*OptionContract {
	var legs []*OptionContract
	for _, leg := range []*OptionContract{c.ShortPut, c.LongPut, c.ShortCall, c.LongCall} {
		if leg != nil {
			legs = append(legs, leg)
		}
	}
	return legs
}
