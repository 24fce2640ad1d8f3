package services

import (
	"arbion-trader/interfaces"
)

// StrategySet holds the enabled strategies built from one set of parameters
type StrategySet struct {
	Enabled     []string
	CoveredCall *CoveredCallStrategy
	PutSpread   *PutCreditSpreadStrategy
	IronCondor  *IronCondorStrategy
}

// NewStrategySet builds every strategy; enabled decides which are evaluated. Empty means covered calls.
func NewStrategySet(params StrategyParams, enabled []string) *StrategySet {
	if len(enabled) == 0 {
		enabled = []string{StrategyCoveredCall}
	}
	return &StrategySet{
		Enabled:     enabled,
		CoveredCall: NewCoveredCallStrategy(params),
		PutSpread:   NewPutCreditSpreadStrategy(params),
		IronCondor:  NewIronCondorStrategy(params),
	}
}

// Uses reports whether the named strategy is enabled
func (ss *StrategySet) Uses(name string) bool {
	for _, enabled := range ss.Enabled {
		if enabled == name {
			return true
		}
	}
	return false
}

// ExpiryDays is the target days to expiry shared by every strategy in the set
func (ss *StrategySet) ExpiryDays() int {
	return ss.CoveredCall.Params().OptionsExpiryDays
}

// StrategyPick is one strategy's verdict on a symbol
type StrategyPick struct {
	Strategy        string
	Recommendation  Recommendation
	EstimatedReturn float64 // annualized percent
	Call            *interfaces.OptionContract
	Legs            []*interfaces.OptionContract
	Strike          float64 // call strike, or short put strike for spreads
	Premium         float64 // call premium, or net credit for spreads
	DTE             int
}

// Actionable reports whether the verdict recommends opening the position
func (p StrategyPick) Actionable() bool {
	switch p.Recommendation.Action {
	case ActionCoveredCall, ActionPutCreditSpread, ActionIronCondor:
		return true
	}
	return false
}

// Evaluate runs every enabled strategy and keeps the actionable pick with the best return.
// When nothing is actionable the first enabled strategy's verdict is returned.
func (ss *StrategySet) Evaluate(analysis *AnalysisResult, calls, puts []*interfaces.OptionContract) StrategyPick {
	var picks []StrategyPick
	for _, name := range ss.Enabled {
		picks = append(picks, ss.evaluate(name, analysis, calls, puts))
	}

	best := -1
	for i, pick := range picks {
		if !pick.Actionable() {
			continue
		}
		if best < 0 || pick.EstimatedReturn > picks[best].EstimatedReturn {
			best = i
		}
	}
	if best < 0 {
		return picks[0]
	}
	return picks[best]
}

func (ss *StrategySet) evaluate(name string, analysis *AnalysisResult, calls, puts []*interfaces.OptionContract) StrategyPick {
	pick := StrategyPick{Strategy: name}
	spot := analysis.CurrentPrice

	switch name {
	case StrategyPutCreditSpread:
		spread := ss.PutSpread.SelectSpread(spot, puts)
		pick.Recommendation = RecommendPutCreditSpread(analysis.BuySignal, spread)
		pick.fromSpread(spread)
	case StrategyIronCondor:
		condor := ss.IronCondor.SelectCondor(spot, puts, calls)
		pick.Recommendation = RecommendIronCondor(condor, analysis.Volatility)
		pick.fromSpread(condor)
	default:
		best := ss.CoveredCall.SelectCall(spot, calls)
		pick.Recommendation = Recommend(analysis.BuySignal, best, analysis.Volatility)
		if best != nil {
			pick.EstimatedReturn = best.AnnualizedReturn
			pick.Call = best.Contract
			pick.Legs = []*interfaces.OptionContract{best.Contract}
			pick.Strike = best.Contract.StrikePrice
			pick.Premium = best.Contract.Premium
			pick.DTE = best.Contract.DTE
		}
	}
	return pick
}

func (p *StrategyPick) fromSpread(spread *interfaces.SpreadCandidate) {
	if spread == nil {
		return
	}
	p.EstimatedReturn = spread.AnnualizedReturn
	p.Legs = spread.Legs()
	p.Strike = spread.ShortPut.StrikePrice
	p.Premium = spread.NetCredit
	p.DTE = spread.DTE
}
