package analytics

import (
	"fmt"
	"math"
	"sort"

	"arbion-trader/interfaces"
)

// DefaultConfidenceThreshold is the cutoff applied when nothing else is configured.
const DefaultConfidenceThreshold = 0.7

// ValidateThreshold rejects thresholds outside [0,1].
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

// Rank drops opportunities below threshold and orders the rest by confidence desc,
// estimated return desc, then symbol asc. The input slice is left untouched.
func Rank(opportunities []interfaces.Opportunity, threshold float64) []interfaces.Opportunity {
	ranked := make([]interfaces.Opportunity, 0, len(opportunities))
	for _, o := range opportunities {
		if o.Confidence >= threshold {
			ranked = append(ranked, o)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		ra, rb := sortableReturn(a.EstimatedReturn), sortableReturn(b.EstimatedReturn)
		if ra != rb {
			return ra > rb
		}
		return a.Symbol < b.Symbol
	})

	return ranked
}

// sortableReturn orders NaN below every real return.
func sortableReturn(r float64) float64 {
	if math.IsNaN(r) {
		return math.Inf(-1)
	}
	return r
}
