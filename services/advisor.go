package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// CandidateContext is what an advisor sees about one scanned symbol
type CandidateContext struct {
	Symbol            string
	CurrentPrice      float64
	PriceChange30DPct float64
	RecentCloses      []float64
	RSI               float64
	Zone              string
	Volatility        float64
	Signal            string
	Strategy          string
	Strike            float64
	Premium           float64
	DaysToExpiry      int
	Headlines         []string
}

// Advice is an advisor's structured opinion on a covered-call candidate
type Advice struct {
	Provider             string   `json:"provider"`
	Analysis             string   `json:"analysis"`
	SuitabilityScore     float64  `json:"suitability_score"` // 0-10
	StrikeRecommendation float64  `json:"strike_price_recommendation,omitempty"`
	DaysToExpiration     int      `json:"days_to_expiration,omitempty"`
	Confidence           float64  `json:"confidence"` // 0-1
	Risks                []string `json:"risks,omitempty"`
	Rewards              []string `json:"rewards,omitempty"`
}

// Advisor produces commentary and a confidence for a candidate
type Advisor interface {
	Name() string
	Available() bool
	AnalyzeCandidate(ctx context.Context, candidate CandidateContext) (*Advice, error)
}

// NoopAdvisor is used when no language model is configured
type NoopAdvisor struct{}

func (NoopAdvisor) Name() string    { return "none" }
func (NoopAdvisor) Available() bool { return false }

func (NoopAdvisor) AnalyzeCandidate(ctx context.Context, candidate CandidateContext) (*Advice, error) {
	return nil, fmt.Errorf("advisor not available")
}

func buildCandidatePrompt(c CandidateContext) string {
	closes := make([]string, len(c.RecentCloses))
	for i, v := range c.RecentCloses {
		closes[i] = fmt.Sprintf("%.2f", v)
	}

	var b strings.Builder
	label := strategyLabel(c.Strategy)
	fmt.Fprintf(&b, "Analyze the stock %s as a potential %s opportunity based on the following data:\n\n", c.Symbol, label)
	fmt.Fprintf(&b, "1. Current Price: $%.2f\n", c.CurrentPrice)
	fmt.Fprintf(&b, "2. 30-Day Price Change: %.2f%%\n", c.PriceChange30DPct)
	fmt.Fprintf(&b, "3. Price History (Last %d days): [%s]\n", len(closes), strings.Join(closes, ", "))
	fmt.Fprintf(&b, "4. RSI(14): %.1f (%s), annualized volatility %.1f%%, technical signal %s\n", c.RSI, c.Zone, c.Volatility, c.Signal)
	if c.Strike > 0 {
		if c.Strategy == "" || c.Strategy == StrategyCoveredCall {
			fmt.Fprintf(&b, "5. Candidate call: strike $%.2f, premium $%.2f, %d days to expiry\n", c.Strike, c.Premium, c.DaysToExpiry)
		} else {
			fmt.Fprintf(&b, "5. Candidate %s: short put strike $%.2f, net credit $%.2f, %d days to expiry\n", label, c.Strike, c.Premium, c.DaysToExpiry)
		}
	}
	if len(c.Headlines) > 0 {
		b.WriteString("6. Recent headlines:\n")
		for _, h := range c.Headlines {
			fmt.Fprintf(&b, "   - %s\n", h)
		}
	}
	b.WriteString(`
Provide the following in a structured JSON format:
1. A brief analysis of recent price action and volatility
2. Evaluation of whether this stock is suitable for the ` + label + ` strategy
3. Recommendation for strike price and expiration if applicable
4. Confidence score (0-1) in your recommendation
5. Potential risks and rewards

JSON format should include: analysis, suitability_score (0-10), strike_price_recommendation, days_to_expiration, confidence, risks, rewards`)
	return b.String()
}

func strategyLabel(name string) string {
	if name == "" {
		return "covered call"
	}
	return strings.ReplaceAll(name, "_", " ")
}

// parseAdvice pulls the first JSON object out of a model reply
func parseAdvice(provider, response string) (*Advice, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no JSON object in %s response", provider)
	}

	var parsed struct {
		Analysis             string          `json:"analysis"`
		SuitabilityScore     float64         `json:"suitability_score"`
		StrikeRecommendation float64         `json:"strike_price_recommendation"`
		DaysToExpiration     int             `json:"days_to_expiration"`
		Confidence           float64         `json:"confidence"`
		Risks                json.RawMessage `json:"risks"`
		Rewards              json.RawMessage `json:"rewards"`
	}
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", provider, err)
	}

	return &Advice{
		Provider:             provider,
		Analysis:             parsed.Analysis,
		SuitabilityScore:     clamp(parsed.SuitabilityScore, 0, 10),
		StrikeRecommendation: parsed.StrikeRecommendation,
		DaysToExpiration:     parsed.DaysToExpiration,
		Confidence:           clamp(parsed.Confidence, 0, 1),
		Risks:                stringList(parsed.Risks),
		Rewards:              stringList(parsed.Rewards),
	}, nil
}

// stringList accepts either a JSON string or an array of strings
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
