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

// Strategy names as stored in settings and on signals
const (
	StrategyCoveredCall     = "covered_call"
	StrategyPutCreditSpread = "put_credit_spread"
	StrategyIronCondor      = "iron_condor"
)

// KnownStrategies lists the selectable strategies in evaluation order
var KnownStrategies = []string{StrategyCoveredCall, StrategyPutCreditSpread, StrategyIronCondor}

// ParseStrategies splits a comma separated list, rejecting unknown names.
// Blank input means covered calls only.
func ParseStrategies(s string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		if !isKnownStrategy(name) {
			return nil, fmt.Errorf("unknown strategy %q", part)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return []string{StrategyCoveredCall}, nil
	}
	return out, nil
}

func isKnownStrategy(name string) bool {
	for _, known := range KnownStrategies {
		if name == known {
			return true
		}
	}
	return false
}

// Recommendation actions for credit spreads
const (
	ActionPutCreditSpread = "PUT_CREDIT_SPREAD"
	ActionIronCondor      = "IRON_CONDOR"
)

// PutSpreadProfile holds the put credit spread thresholds and score weights for a risk level
type PutSpreadProfile struct {
	ShortDelta   float64 `json:"short_delta"`
	LongDelta    float64 `json:"long_delta"`
	WidthPct     float64 `json:"width_pct"`
	CreditMinPct float64 `json:"credit_min_pct"` // of spread width
	ShortWeight  float64 `json:"short_weight"`
	LongWeight   float64 `json:"long_weight"`
	WidthWeight  float64 `json:"width_weight"`
	CreditWeight float64 `json:"credit_weight"`
	ExpiryWeight float64 `json:"expiry_weight"`
}

// PutSpreadProfileFor returns the spread profile of a risk level; unknown levels get moderate
func PutSpreadProfileFor(level RiskLevel) PutSpreadProfile {
	switch level {
	case RiskConservative:
		return PutSpreadProfile{ShortDelta: 0.25, LongDelta: 0.15, WidthPct: 5.0, CreditMinPct: 0.4,
			ShortWeight: 0.3, LongWeight: 0.2, WidthWeight: 0.2, CreditWeight: 0.1, ExpiryWeight: 0.2}
	case RiskAggressive:
		return PutSpreadProfile{ShortDelta: 0.40, LongDelta: 0.25, WidthPct: 7.5, CreditMinPct: 0.8,
			ShortWeight: 0.2, LongWeight: 0.1, WidthWeight: 0.2, CreditWeight: 0.4, ExpiryWeight: 0.1}
	default:
		return PutSpreadProfile{ShortDelta: 0.30, LongDelta: 0.20, WidthPct: 6.0, CreditMinPct: 0.6,
			ShortWeight: 0.25, LongWeight: 0.15, WidthWeight: 0.2, CreditWeight: 0.25, ExpiryWeight: 0.15}
	}
}

// CondorProfile holds the iron condor thresholds and score weights for a risk level
type CondorProfile struct {
	PutDelta     float64 `json:"put_delta"`
	CallDelta    float64 `json:"call_delta"`
	WingPct      float64 `json:"wing_pct"`
	CreditMinPct float64 `json:"credit_min_pct"` // of max risk
	RangePct     float64 `json:"range_pct"`
	WingWeight   float64 `json:"wing_weight"`
	RangeWeight  float64 `json:"range_weight"`
	CreditWeight float64 `json:"credit_weight"`
	ExpiryWeight float64 `json:"expiry_weight"`
}

// CondorProfileFor returns the condor profile of a risk level; unknown levels get moderate
func CondorProfileFor(level RiskLevel) CondorProfile {
	switch level {
	case RiskConservative:
		return CondorProfile{PutDelta: 0.15, CallDelta: 0.15, WingPct: 5.0, CreditMinPct: 0.7, RangePct: 15.0,
			WingWeight: 0.3, RangeWeight: 0.3, CreditWeight: 0.2, ExpiryWeight: 0.2}
	case RiskAggressive:
		return CondorProfile{PutDelta: 0.30, CallDelta: 0.30, WingPct: 4.0, CreditMinPct: 1.2, RangePct: 10.0,
			WingWeight: 0.2, RangeWeight: 0.2, CreditWeight: 0.5, ExpiryWeight: 0.1}
	default:
		return CondorProfile{PutDelta: 0.20, CallDelta: 0.20, WingPct: 4.5, CreditMinPct: 0.9, RangePct: 12.0,
			WingWeight: 0.25, RangeWeight: 0.25, CreditWeight: 0.3, ExpiryWeight: 0.2}
	}
}

const (
	spreadDeltaTolerance = 0.15
	condorDeltaTolerance = 0.1
	spreadWidthDeviation = 0.4
)

// PutCreditSpreadStrategy sells a put and buys a lower strike put with the same expiry
type PutCreditSpreadStrategy struct {
	params  StrategyParams
	profile PutSpreadProfile
}

// NewPutCreditSpreadStrategy creates a put credit spread strategy
func NewPutCreditSpreadStrategy(params StrategyParams) *PutCreditSpreadStrategy {
	if params.OptionsExpiryDays <= 0 {
		params.OptionsExpiryDays = 30
	}
	return &PutCreditSpreadStrategy{params: params, profile: PutSpreadProfileFor(params.RiskLevel)}
}

// Profile returns the active spread profile
func (s *PutCreditSpreadStrategy) Profile() PutSpreadProfile {
	return s.profile
}

// RankSpreads pairs each qualifying short put with the nearest lower long put that fits, best first
func (s *PutCreditSpreadStrategy) RankSpreads(spot float64, puts []*interfaces.OptionContract) []*interfaces.SpreadCandidate {
	if spot <= 0 || len(puts) == 0 {
		return nil
	}
	sorted := sortedByStrike(puts)
	targetWidth := spot * s.profile.WidthPct / 100

	var spreads []*interfaces.SpreadCandidate
	for i, short := range sorted {
		shortDelta := absDelta(short, 0.3)
		if math.Abs(shortDelta-s.profile.ShortDelta) > spreadDeltaTolerance {
			continue
		}
		if !withinExpiryWindow(short.DTE, s.params.OptionsExpiryDays) {
			continue
		}

		for j := i - 1; j >= 0; j-- {
			long := sorted[j]
			if long.DTE != short.DTE {
				continue
			}
			width := short.StrikePrice - long.StrikePrice
			if width <= 0 {
				continue
			}
			credit := short.Premium - long.Premium
			if math.Abs(width-targetWidth)/targetWidth > spreadWidthDeviation {
				continue
			}
			if credit/width < s.profile.CreditMinPct/100 || credit >= width {
				continue
			}

			shortScore := 1 - math.Abs(shortDelta-s.profile.ShortDelta)*2
			longScore := 1 - math.Abs(absDelta(long, 0.2)-s.profile.LongDelta)*2
			widthScore := 1 - math.Abs(width/spot*100-s.profile.WidthPct)/5
			creditScore := credit / width * 5
			expiryScore := 1 - math.Abs(float64(short.DTE-s.params.OptionsExpiryDays))/30

			spreads = append(spreads, &interfaces.SpreadCandidate{
				ShortPut:         short,
				LongPut:          long,
				NetCredit:        credit,
				MaxRisk:          width - credit,
				DTE:              short.DTE,
				AnnualizedReturn: annualizedCreditYield(width-credit, credit, short.DTE),
				Score: shortScore*s.profile.ShortWeight +
					longScore*s.profile.LongWeight +
					widthScore*s.profile.WidthWeight +
					creditScore*s.profile.CreditWeight +
					expiryScore*s.profile.ExpiryWeight,
			})
			// one long leg per short put
			break
		}
	}

	sort.SliceStable(spreads, func(i, j int) bool {
		return spreads[i].Score > spreads[j].Score
	})
	return spreads
}

// SelectSpread returns the highest-scoring spread, or nil when nothing qualifies
func (s *PutCreditSpreadStrategy) SelectSpread(spot float64, puts []*interfaces.OptionContract) *interfaces.SpreadCandidate {
	spreads := s.RankSpreads(spot, puts)
	if len(spreads) == 0 {
		return nil
	}
	return spreads[0]
}

// IronCondorStrategy pairs an out-of-the-money put spread with a call spread on the same expiry
type IronCondorStrategy struct {
	params  StrategyParams
	profile CondorProfile
}

// NewIronCondorStrategy creates an iron condor strategy
func NewIronCondorStrategy(params StrategyParams) *IronCondorStrategy {
	if params.OptionsExpiryDays <= 0 {
		params.OptionsExpiryDays = 30
	}
	return &IronCondorStrategy{params: params, profile: CondorProfileFor(params.RiskLevel)}
}

// Profile returns the active condor profile
func (s *IronCondorStrategy) Profile() CondorProfile {
	return s.profile
}

// RankCondors builds every condor whose four legs fit the profile, best first
func (s *IronCondorStrategy) RankCondors(spot float64, puts, calls []*interfaces.OptionContract) []*interfaces.SpreadCandidate {
	if spot <= 0 || len(puts) == 0 || len(calls) == 0 {
		return nil
	}
	sortedPuts := sortedByStrike(puts)
	sortedCalls := sortedByStrike(calls)
	wing := spot * s.profile.WingPct / 100

	var condors []*interfaces.SpreadCandidate
	for i, shortPut := range sortedPuts {
		if shortPut.StrikePrice >= spot {
			continue
		}
		if math.Abs(absDelta(shortPut, 0.2)-s.profile.PutDelta) > condorDeltaTolerance {
			continue
		}
		if !withinExpiryWindow(shortPut.DTE, s.params.OptionsExpiryDays) {
			continue
		}

		longPut := nearestStrike(sortedPuts[:i], shortPut.StrikePrice-wing, func(c *interfaces.OptionContract) bool {
			return c.DTE == shortPut.DTE
		})
		if longPut == nil {
			continue
		}

		shortCall := nearestStrike(sortedCalls, shortPut.StrikePrice+spot*s.profile.RangePct/100, func(c *interfaces.OptionContract) bool {
			return c.StrikePrice > spot && sameExpiry(c, shortPut) &&
				math.Abs(absDelta(c, 0.2)-s.profile.CallDelta) <= condorDeltaTolerance
		})
		if shortCall == nil {
			continue
		}
		longCall := nearestStrike(sortedCalls, shortCall.StrikePrice+wing, func(c *interfaces.OptionContract) bool {
			return c.StrikePrice > shortCall.StrikePrice && sameExpiry(c, shortPut)
		})
		if longCall == nil {
			continue
		}

		putWidth := shortPut.StrikePrice - longPut.StrikePrice
		callWidth := longCall.StrikePrice - shortCall.StrikePrice
		if putWidth <= 0 || callWidth <= 0 {
			continue
		}
		credit := (shortPut.Premium - longPut.Premium) + (shortCall.Premium - longCall.Premium)
		maxRisk := math.Max(putWidth, callWidth) - credit
		if maxRisk <= 0 || credit < maxRisk*s.profile.CreditMinPct/100 {
			continue
		}

		wingScore := math.Min(putWidth, callWidth) / math.Max(putWidth, callWidth)
		rangePct := (shortCall.StrikePrice - shortPut.StrikePrice) / spot * 100
		rangeScore := 1 - math.Abs(rangePct-s.profile.RangePct)/5
		creditScore := credit / maxRisk * 5
		expiryScore := 1 - math.Abs(float64(shortPut.DTE-s.params.OptionsExpiryDays))/30

		condors = append(condors, &interfaces.SpreadCandidate{
			ShortPut:         shortPut,
			LongPut:          longPut,
			ShortCall:        shortCall,
			LongCall:         longCall,
			NetCredit:        credit,
			MaxRisk:          maxRisk,
			DTE:              shortPut.DTE,
			AnnualizedReturn: annualizedCreditYield(maxRisk, credit, shortPut.DTE),
			Score: wingScore*s.profile.WingWeight +
				rangeScore*s.profile.RangeWeight +
				creditScore*s.profile.CreditWeight +
				expiryScore*s.profile.ExpiryWeight,
		})
	}

	sort.SliceStable(condors, func(i, j int) bool {
		return condors[i].Score > condors[j].Score
	})
	return condors
}

// SelectCondor returns the highest-scoring condor, or nil when nothing qualifies
func (s *IronCondorStrategy) SelectCondor(spot float64, puts, calls []*interfaces.OptionContract) *interfaces.SpreadCandidate {
	condors := s.RankCondors(spot, puts, calls)
	if len(condors) == 0 {
		return nil
	}
	return condors[0]
}

// RecommendPutCreditSpread is the verdict for a bullish put spread
func RecommendPutCreditSpread(buySignal bool, best *interfaces.SpreadCandidate) Recommendation {
	if !buySignal {
		return Recommendation{Action: ActionHold, Reason: "Technical indicators do not support a bullish put spread at this time."}
	}
	if best == nil {
		return Recommendation{Action: ActionHold, Reason: "No suitable put credit spread found."}
	}
	if best.AnnualizedReturn < minAnnualizedReturn {
		return Recommendation{Action: ActionHold, Reason: "Put spread credit is too low for the risk taken."}
	}
	return Recommendation{
		Action: ActionPutCreditSpread,
		Reason: fmt.Sprintf("Technical indicators are positive and the put spread yields %.2f%% annualized on risk.", best.AnnualizedReturn),
	}
}

// RecommendIronCondor is the verdict for a market-neutral condor; the buy signal is not required
func RecommendIronCondor(best *interfaces.SpreadCandidate, volatility float64) Recommendation {
	if volatility < minVolatilityPct {
		return Recommendation{Action: ActionHold, Reason: "Stock volatility is too low for a profitable iron condor."}
	}
	if best == nil {
		return Recommendation{Action: ActionHold, Reason: "No suitable iron condor found."}
	}
	if best.AnnualizedReturn < minAnnualizedReturn {
		return Recommendation{Action: ActionHold, Reason: "Iron condor credit is too low for the risk taken."}
	}
	return Recommendation{
		Action: ActionIronCondor,
		Reason: fmt.Sprintf("Iron condor collects %.2f credit and yields %.2f%% annualized on risk.", best.NetCredit, best.AnnualizedReturn),
	}
}

// TheoreticalPuts mirrors TheoreticalCalls 5-15% below spot. Premium and delta fall with distance.
func TheoreticalPuts(underlying string, spot, volatility float64, now time.Time) []*interfaces.OptionContract {
	if spot <= 0 {
		return nil
	}

	var puts []*interfaces.OptionContract
	for _, strikeFactor := range []float64{0.85, 0.90, 0.95} {
		for _, days := range []int{30, 45, 60} {
			strike := round2(spot * strikeFactor)
			otm := (spot - strike) / spot
			base := spot * (volatility / 100) * (float64(days) / 30) * 0.2
			premium := round2(base * math.Max(0.1, 1-otm*5))

			puts = append(puts, &interfaces.OptionContract{
				Symbol:            fmt.Sprintf("%s-P-%.2f-%dD", strings.ToUpper(underlying), strike, days),
				UnderlyingSymbol:  strings.ToUpper(underlying),
				ContractType:      "put",
				StrikePrice:       strike,
				ExpirationDate:    truncateDay(now).AddDate(0, 0, days),
				Premium:           premium,
				Bid:               math.Max(0, round2(premium-0.05)),
				Ask:               round2(premium + 0.05),
				Delta:             -round2(math.Max(0.05, 0.5-otm*3)),
				ImpliedVolatility: round2(volatility * (1 + otm*0.5)),
				DTE:               days,
				Theoretical:       true,
			})
		}
	}
	return puts
}

func sortedByStrike(contracts []*interfaces.OptionContract) []*interfaces.OptionContract {
	out := make([]*interfaces.OptionContract, 0, len(contracts))
	for _, c := range contracts {
		if c != nil && c.StrikePrice > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StrikePrice < out[j].StrikePrice
	})
	return out
}

// nearestStrike returns the contract closest to target among those accepted by ok; ties keep the first
func nearestStrike(contracts []*interfaces.OptionContract, target float64, ok func(*interfaces.OptionContract) bool) *interfaces.OptionContract {
	var best *interfaces.OptionContract
	bestDiff := math.Inf(1)
	for _, c := range contracts {
		if !ok(c) {
			continue
		}
		if diff := math.Abs(c.StrikePrice - target); diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best
}

func sameExpiry(a, b *interfaces.OptionContract) bool {
	return a.DTE == b.DTE && a.ExpirationDate.Equal(b.ExpirationDate)
}

// absDelta treats a zero delta as unquoted
func absDelta(c *interfaces.OptionContract, fallback float64) float64 {
	if c.Delta == 0 {
		return fallback
	}
	return math.Abs(c.Delta)
}

func withinExpiryWindow(dte, target int) bool {
	lo := target - dteTolerance
	if lo < 7 {
		lo = 7
	}
	return dte >= lo && dte <= target+dteTolerance
}

// annualizedCreditYield is the credit as a percent of max risk, scaled to a year
func annualizedCreditYield(maxRisk, credit float64, dte int) float64 {
	simple, err := analytics.SimpleReturnPct(decimal.NewFromFloat(maxRisk), decimal.NewFromFloat(credit))
	if err != nil {
		return 0
	}
	annualized, err := analytics.AnnualizedReturnPct(simple, analytics.HoldingDaysFloor(dte))
	if err != nil {
		return 0
	}
	return annualized.InexactFloat64()
}
