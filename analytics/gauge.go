package analytics

import "math"

// Zone is the qualitative RSI band
type Zone string

const (
	ZoneOverbought Zone = "OVERBOUGHT"
	ZoneOversold   Zone = "OVERSOLD"
	ZoneNeutral    Zone = "NEUTRAL"
)

const (
	OverboughtLevel = 70.0
	OversoldLevel   = 30.0
)

// GaugeReading is a display-ready RSI indicator
type GaugeReading struct {
	RSI      float64 `json:"rsi"`
	Fraction float64 `json:"fraction"`
	Zone     Zone    `json:"zone"`
}

// Classify maps an RSI value to its zone. Both thresholds belong to their named zone.
func Classify(rsi float64) Zone {
	switch {
	case rsi >= OverboughtLevel:
		return ZoneOverbought
	case rsi <= OversoldLevel:
		return ZoneOversold
	default:
		return ZoneNeutral
	}
}

// GaugeFraction returns rsi/100 clamped to [0,1]. Upstream RSI can round slightly
// outside its bounds, so out-of-range input is clamped rather than rejected.
func GaugeFraction(rsi float64) float64 {
	if math.IsNaN(rsi) {
		return 0
	}
	return math.Max(0, math.Min(1, rsi/100))
}

// Gauge builds the full reading for rsi.
func Gauge(rsi float64) GaugeReading {
	return GaugeReading{
		RSI:      rsi,
		Fraction: GaugeFraction(rsi),
		Zone:     Classify(rsi),
	}
}
