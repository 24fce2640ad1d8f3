package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"arbion-trader/analytics"
	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
)

// RiskLevel selects how aggressively calls are written
type RiskLevel string

const (
	RiskConservative RiskLevel = "conservative"
	RiskModerate     RiskLevel = "moderate"
	RiskAggressive   RiskLevel = "aggressive"
)

// ParseRiskLevel maps free text to a risk level, rejecting unknown values
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskConservative:
		return RiskConservative, nil
	case RiskModerate:
		return RiskModerate, nil
	case RiskAggressive:
		return RiskAggressive, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// RiskProfile holds the selection thresholds and score weights for a risk level
type RiskProfile struct {
	DeltaTarget      float64 `json:"delta_target"`
	PremiumMinPct    float64 `json:"premium_min_pct"`
	StrikeMinPct     float64 `json:"strike_min_pct"`
	BestOptionsCount int     `json:"best_options_count"`
	DeltaWeight      float64 `json:"delta_weight"`
	PremiumWeight    float64 `json:"premium_weight"`
	ExpiryWeight     float64 `json:"expiry_weight"`
}

// ProfileFor returns the profile of a risk level; unknown levels get moderate
func ProfileFor(level RiskLevel) RiskProfile {
	switch level {
	case RiskConservative:
		return RiskProfile{DeltaTarget: 0.2, PremiumMinPct: 0.5, StrikeMinPct: 5.0, BestOptionsCount: 1,
			DeltaWeight: 0.5, PremiumWeight: 0.2, ExpiryWeight: 0.3}
	case RiskAggressive:
		return RiskProfile{DeltaTarget: 0.4, PremiumMinPct: 1.5, StrikeMinPct: 2.0, BestOptionsCount: 3,
			DeltaWeight: 0.2, PremiumWeight: 0.6, ExpiryWeight: 0.2}
	default:
		return RiskProfile{DeltaTarget: 0.3, PremiumMinPct: 1.0, StrikeMinPct: 3.0, BestOptionsCount: 2,
			DeltaWeight: 0.3, PremiumWeight: 0.4, ExpiryWeight: 0.3}
	}
}

// StrategyParams configures a covered-call strategy
type StrategyParams struct {
	RiskLevel         RiskLevel
	ProfitTargetPct   float64
	StopLossPct       float64
	OptionsExpiryDays int
}

// CoveredCallStrategy selects calls to write against held stock and reviews open covered calls
type CoveredCallStrategy struct {
	params  StrategyParams
	profile RiskProfile
}

// NewCoveredCallStrategy creates a strategy for the given parameters
func NewCoveredCallStrategy(params StrategyParams) *CoveredCallStrategy {
	if params.OptionsExpiryDays <= 0 {
		params.OptionsExpiryDays = 30
	}
	return &CoveredCallStrategy{
		params:  params,
		profile: ProfileFor(params.RiskLevel),
	}
}

// Params returns the strategy parameters
func (s *CoveredCallStrategy) Params() StrategyParams {
	return s.params
}

// Profile returns the active risk profile
func (s *CoveredCallStrategy) Profile() RiskProfile {
	return s.profile
}

// RankCalls scores every call that clears the premium and strike minimums, best first
func (s *CoveredCallStrategy) RankCalls(spot float64, calls []*interfaces.OptionContract) []*interfaces.CallCandidate {
	if spot <= 0 || len(calls) == 0 {
		return nil
	}

	expiryMin := s.params.OptionsExpiryDays - 10
	if expiryMin < 7 {
		expiryMin = 7
	}
	expiryMax := s.params.OptionsExpiryDays + 10

	var candidates []*interfaces.CallCandidate
	for _, call := range calls {
		if call == nil || call.StrikePrice <= 0 || call.Premium <= 0 {
			continue
		}

		strikePct := (call.StrikePrice - spot) / spot * 100
		premiumPct := call.Premium / spot * 100
		if strikePct < s.profile.StrikeMinPct || premiumPct < s.profile.PremiumMinPct {
			continue
		}

		// out-of-window expiries only fill the list until enough candidates exist
		if call.DTE < expiryMin || call.DTE > expiryMax {
			if len(candidates) >= s.profile.BestOptionsCount {
				continue
			}
		}

		delta := call.Delta
		if delta == 0 {
			delta = 0.3
		}
		deltaScore := 1 - math.Abs(delta-s.profile.DeltaTarget)*2
		premiumScore := premiumPct / 2
		expiryScore := 1 - math.Abs(float64(call.DTE-s.params.OptionsExpiryDays))/30

		candidates = append(candidates, &interfaces.CallCandidate{
			Contract:         call,
			PremiumPercent:   premiumPct,
			StrikePercent:    strikePct,
			AnnualizedReturn: annualizedPremiumYield(spot, call.Premium, call.DTE),
			Score: deltaScore*s.profile.DeltaWeight +
				premiumScore*s.profile.PremiumWeight +
				expiryScore*s.profile.ExpiryWeight,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// SelectCall returns the highest-scoring candidate, or nil when nothing qualifies
func (s *CoveredCallStrategy) SelectCall(spot float64, calls []*interfaces.OptionContract) *interfaces.CallCandidate {
	candidates := s.RankCalls(spot, calls)
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// TheoreticalCalls builds a small synthetic chain 5-15% out of the money at 30/45/60 days.
// Premiums scale with annualized volatility (percent) and time.
func TheoreticalCalls(underlying string, spot, volatility float64, now time.Time) []*interfaces.OptionContract {
	if spot <= 0 {
		return nil
	}

	var calls []*interfaces.OptionContract
	for _, strikeFactor := range []float64{1.05, 1.10, 1.15} {
		for _, days := range []int{30, 45, 60} {
			strike := round2(spot * strikeFactor)
			premium := round2(spot * (volatility / 100) * (float64(days) / 30) * 0.2)
			otm := (strike - spot) / spot

			calls = append(calls, &interfaces.OptionContract{
				Symbol:            fmt.Sprintf("%s-C-%.2f-%dD", strings.ToUpper(underlying), strike, days),
				UnderlyingSymbol:  strings.ToUpper(underlying),
				ContractType:      "call",
				StrikePrice:       strike,
				ExpirationDate:    truncateDay(now).AddDate(0, 0, days),
				Premium:           premium,
				Bid:               math.Max(0, round2(premium-0.05)),
				Ask:               round2(premium + 0.05),
				Delta:             round2(math.Max(0.1, 0.5-otm)),
				ImpliedVolatility: round2(volatility * (1 + otm*0.5)),
				DTE:               days,
				Theoretical:       true,
			})
		}
	}
	return calls
}

// Recommendation actions
const (
	ActionHold         = "HOLD"
	ActionBuyStockOnly = "BUY_STOCK_ONLY"
	ActionCoveredCall  = "COVERED_CALL"
)

const (
	minVolatilityPct     = 15.0
	minAnnualizedReturn  = 12.0
	nearExpiryDays       = 5
	assignmentGuardDays  = 7
	rollBelowStrikeRatio = 0.98
	rollAboveStrikeRatio = 1.02
)

// Recommendation is the overall verdict for one scanned symbol
type Recommendation struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Recommend combines the technical buy signal, volatility and the best call into a verdict
func Recommend(buySignal bool, best *interfaces.CallCandidate, volatility float64) Recommendation {
	if !buySignal {
		return Recommendation{Action: ActionHold, Reason: "Technical indicators do not support a buy at this time."}
	}
	if best == nil {
		return Recommendation{Action: ActionBuyStockOnly, Reason: "Technical indicators support buying the stock, but no suitable call options found."}
	}
	if volatility < minVolatilityPct {
		return Recommendation{Action: ActionBuyStockOnly, Reason: "Stock volatility is too low for profitable covered calls."}
	}
	if best.AnnualizedReturn < minAnnualizedReturn {
		return Recommendation{Action: ActionBuyStockOnly, Reason: "Call option premiums are too low for a profitable covered call strategy."}
	}
	return Recommendation{
		Action: ActionCoveredCall,
		Reason: fmt.Sprintf("Technical indicators are positive and the covered call yields %.2f%% annualized.", best.AnnualizedReturn),
	}
}

// Position adjustment actions
const (
	AdjustNone         = "NO_ACTION"
	AdjustBuyToClose   = "BUY_TO_CLOSE"
	AdjustRollOut      = "ROLL_OUT"
	AdjustRollUpAndOut = "ROLL_UP_AND_OUT"
)

// Adjustment is an advisory action for an open covered call
type Adjustment struct {
	TradeID uint   `json:"trade_id"`
	Symbol  string `json:"symbol"`
	Action  string `json:"action"`
	Reason  string `json:"reason"`
}

// AdjustPosition reviews an open covered call against the current underlying price.
// entryPrice is the stock cost basis per share.
func (s *CoveredCallStrategy) AdjustPosition(trade interfaces.Trade, entryPrice, currentPrice decimal.Decimal, now time.Time) Adjustment {
	adj := Adjustment{TradeID: trade.ID, Symbol: trade.Symbol, Action: AdjustNone}

	if trade.TradeType != interfaces.TradeTypeCoveredCall || trade.OptionStrike == nil || trade.OptionExpiry == nil || trade.Price.IsZero() {
		adj.Reason = "No covered call details found"
		return adj
	}
	if entryPrice.IsZero() {
		adj.Reason = "No entry price for the underlying"
		return adj
	}

	pl, _ := currentPrice.Sub(entryPrice).Div(entryPrice).Mul(decimal.NewFromInt(100)).Float64()
	strike := trade.OptionStrike.InexactFloat64()
	price := currentPrice.InexactFloat64()
	dte := analytics.DaysToExpiry(*trade.OptionExpiry, now)

	switch {
	case pl <= -s.params.StopLossPct:
		adj.Action = AdjustBuyToClose
		adj.Reason = fmt.Sprintf("Stop loss triggered: %.2f%% loss exceeds %.2f%% threshold", pl, s.params.StopLossPct)
	case pl >= s.params.ProfitTargetPct:
		adj.Action = AdjustBuyToClose
		adj.Reason = fmt.Sprintf("Profit target reached: %.2f%% gain exceeds %.2f%% threshold", pl, s.params.ProfitTargetPct)
	case dte <= nearExpiryDays && price < strike*rollBelowStrikeRatio:
		adj.Action = AdjustRollOut
		adj.Reason = fmt.Sprintf("Option near expiry (%d days) and price below strike", dte)
	case price > strike*rollAboveStrikeRatio && dte > assignmentGuardDays:
		adj.Action = AdjustRollUpAndOut
		adj.Reason = "Stock price above strike by more than 2%, risk of early assignment"
	default:
		adj.Reason = "Position within parameters"
	}
	return adj
}

// annualizedPremiumYield is the premium as a percent of spot, scaled to a year of days-to-expiry periods
func annualizedPremiumYield(spot, premium float64, dte int) float64 {
	simple, err := analytics.SimpleReturnPct(decimal.NewFromFloat(spot), decimal.NewFromFloat(premium))
	if err != nil {
		return 0
	}
	annualized, err := analytics.AnnualizedReturnPct(simple, analytics.HoldingDaysFloor(dte))
	if err != nil {
		return 0
	}
	return annualized.InexactFloat64()
}
