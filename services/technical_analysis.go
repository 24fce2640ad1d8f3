package services

import (
	"fmt"
	"math"

	"arbion-trader/analytics"
	"arbion-trader/interfaces"
)

const (
	rsiPeriod        = 14
	tradingDaysYear  = 252
	macdSignalPeriod = 9
)

// TechnicalAnalysisService turns daily bars into the indicators a covered-call scan needs
type TechnicalAnalysisService struct{}

// NewTechnicalAnalysisService creates a new technical analysis service
func NewTechnicalAnalysisService() *TechnicalAnalysisService {
	return &TechnicalAnalysisService{}
}

// AnalysisResult contains the indicators for one symbol
type AnalysisResult struct {
	Symbol       string                 `json:"symbol"`
	CurrentPrice float64                `json:"current_price"`
	SMA20        float64                `json:"sma_20,omitempty"`
	SMA50        float64                `json:"sma_50,omitempty"`
	RSI          float64                `json:"rsi"`
	Gauge        analytics.GaugeReading `json:"gauge"`
	MACD         *MACDResult            `json:"macd,omitempty"`
	Momentum     *MomentumResult        `json:"momentum,omitempty"`
	Volume       *VolumeAnalysis        `json:"volume,omitempty"`
	Volatility   float64                `json:"volatility"` // annualized, percent
	BuySignal    bool                   `json:"buy_signal"`
	Signal       string                 `json:"signal"`     // "BUY", "SELL", "HOLD"
	Confidence   float64                `json:"confidence"` // 0-100
}

// MACDResult contains MACD indicator values
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MomentumResult contains momentum indicators
type MomentumResult struct {
	PriceChange1D   float64 `json:"price_change_1d"`
	PriceChange5D   float64 `json:"price_change_5d"`
	PercentChange1D float64 `json:"percent_change_1d"`
	PercentChange5D float64 `json:"percent_change_5d"`
}

// VolumeAnalysis contains volume-based indicators
type VolumeAnalysis struct {
	Current int64   `json:"current"`
	Average float64 `json:"average"`
	Ratio   float64 `json:"ratio"` // current / average
	Trend   string  `json:"trend"` // "increasing", "decreasing", "stable"
}

// CalculateSMA calculates Simple Moving Average
func CalculateSMA(bars []*interfaces.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}

	sum := 0.0
	start := len(bars) - period
	for i := start; i < len(bars); i++ {
		sum += bars[i].Close
	}

	return sum / float64(period)
}

// CalculateRSI calculates Relative Strength Index over simple averages of gains and losses
func CalculateRSI(bars []*interfaces.Bar, period int) float64 {
	if len(bars) < period+1 {
		return 50.0 // neutral
	}

	var gains, losses []float64
	start := len(bars) - period - 1
	for i := start; i < len(bars)-1; i++ {
		change := bars[i+1].Close - bars[i].Close
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, math.Abs(change))
		}
	}

	avgGain := average(gains)
	avgLoss := average(losses)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// CalculateMACD calculates the 12/26 MACD line and its 9-period signal line
func CalculateMACD(bars []*interfaces.Bar) *MACDResult {
	if len(bars) < 26 {
		return nil
	}

	closes := closesOf(bars)
	ema12 := emaSeries(closes, 12)
	ema26 := emaSeries(closes, 26)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = ema12[i] - ema26[i]
	}
	signalLine := emaSeries(macdLine, macdSignalPeriod)

	last := len(closes) - 1
	return &MACDResult{
		MACD:      macdLine[last],
		Signal:    signalLine[last],
		Histogram: macdLine[last] - signalLine[last],
	}
}

// CalculateVolatility returns the annualized standard deviation of daily returns, in percent
func CalculateVolatility(bars []*interfaces.Bar) float64 {
	if len(bars) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, bars[i].Close/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := average(returns)
	sumSq := 0.0
	for _, r := range returns {
		sumSq += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(sumSq / float64(len(returns)-1))

	return stdDev * math.Sqrt(tradingDaysYear) * 100
}

// Analyze computes every indicator for the given bars, oldest first
func (tas *TechnicalAnalysisService) Analyze(symbol string, bars []*interfaces.Bar) (*AnalysisResult, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars data available for %s", symbol)
	}

	currentBar := bars[len(bars)-1]
	result := &AnalysisResult{
		Symbol:       symbol,
		CurrentPrice: currentBar.Close,
		RSI:          CalculateRSI(bars, rsiPeriod),
	}

	if len(bars) >= 20 {
		result.SMA20 = CalculateSMA(bars, 20)
	}
	if len(bars) >= 50 {
		result.SMA50 = CalculateSMA(bars, 50)
	}

	result.Gauge = analytics.Gauge(result.RSI)
	result.MACD = CalculateMACD(bars)
	result.Momentum = calculateMomentum(bars)
	result.Volume = analyzeVolume(bars)
	result.Volatility = CalculateVolatility(bars)
	result.BuySignal = evaluateBuySignal(result)
	result.Signal, result.Confidence = generateSignal(result)

	return result, nil
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func closesOf(bars []*interfaces.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes
}

// emaSeries seeds with the first value, matching a non-adjusted exponential average
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	multiplier := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*multiplier + out[i-1]*(1-multiplier)
	}
	return out
}

func calculateMomentum(bars []*interfaces.Bar) *MomentumResult {
	if len(bars) < 6 {
		return nil
	}

	current := bars[len(bars)-1].Close
	day1 := bars[len(bars)-2].Close
	day5 := bars[len(bars)-6].Close
	if day1 == 0 || day5 == 0 {
		return nil
	}

	return &MomentumResult{
		PriceChange1D:   current - day1,
		PriceChange5D:   current - day5,
		PercentChange1D: ((current - day1) / day1) * 100,
		PercentChange5D: ((current - day5) / day5) * 100,
	}
}

func analyzeVolume(bars []*interfaces.Bar) *VolumeAnalysis {
	if len(bars) < 20 {
		return nil
	}

	currentVolume := bars[len(bars)-1].Volume

	volumeSum := int64(0)
	for i := len(bars) - 20; i < len(bars); i++ {
		volumeSum += bars[i].Volume
	}
	avgVolume := float64(volumeSum) / 20.0
	if avgVolume == 0 {
		return nil
	}

	ratio := float64(currentVolume) / avgVolume

	trend := "stable"
	if ratio > 1.5 {
		trend = "increasing"
	} else if ratio < 0.5 {
		trend = "decreasing"
	}

	return &VolumeAnalysis{
		Current: currentVolume,
		Average: avgVolume,
		Ratio:   ratio,
		Trend:   trend,
	}
}

// evaluateBuySignal wants at least three of: price above SMA20, SMA20 above SMA50,
// RSI strictly between 40 and 70, MACD above its signal line
func evaluateBuySignal(result *AnalysisResult) bool {
	if result.SMA20 == 0 || result.SMA50 == 0 || result.MACD == nil {
		return false
	}

	score := 0
	if result.CurrentPrice > result.SMA20 {
		score++
	}
	if result.SMA20 > result.SMA50 {
		score++
	}
	if result.RSI > 40 && result.RSI < 70 {
		score++
	}
	if result.MACD.MACD > result.MACD.Signal {
		score++
	}
	return score >= 3
}

func generateSignal(result *AnalysisResult) (string, float64) {
	buyScore, sellScore := 0, 0
	confidence := 0.0

	if result.SMA20 > 0 {
		if result.CurrentPrice > result.SMA20 {
			buyScore++
		} else {
			sellScore++
		}
		confidence += 15
	}

	if result.SMA50 > 0 {
		if result.SMA20 > result.SMA50 {
			buyScore++
			confidence += 20
		} else if result.SMA20 < result.SMA50 {
			sellScore++
			confidence += 20
		}
	}

	switch result.Gauge.Zone {
	case analytics.ZoneOversold:
		buyScore += 2
		confidence += 25
	case analytics.ZoneOverbought:
		sellScore += 2
		confidence += 25
	default:
		confidence += 10
	}

	if result.MACD != nil {
		if result.MACD.Histogram > 0 {
			buyScore++
		} else {
			sellScore++
		}
		confidence += 15
	}

	if result.Momentum != nil {
		if result.Momentum.PercentChange5D > 5 {
			buyScore++
			confidence += 10
		} else if result.Momentum.PercentChange5D < -5 {
			sellScore++
			confidence += 10
		}
	}

	// Volume confirmation
	if result.Volume != nil && result.Volume.Ratio > 1.2 {
		confidence += 5
	}

	confidence = math.Min(confidence, 100)
	if buyScore > sellScore+1 {
		return "BUY", confidence
	} else if sellScore > buyScore+1 {
		return "SELL", confidence
	}
	return "HOLD", confidence
}
