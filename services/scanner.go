package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"arbion-trader/analytics"
	"arbion-trader/interfaces"
	"arbion-trader/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	barLookbackDays = 120
	dteTolerance    = 10
	scanConcurrency = 4
	advisorTimeout  = 45 * time.Second
	promptCloses    = 30
)

// ErrNoSymbols is returned when a scan is asked to cover nothing
var ErrNoSymbols = errors.New("no symbols to scan")

// ScanStorage is the persistence a scanner needs
type ScanStorage interface {
	GetSettings() (*models.DBSettings, error)
	SaveSignals(signals []*models.DBSignal) error
	ListWatchlist() ([]*models.DBWatchlistItem, error)
}

// Scanner evaluates symbols against the enabled option strategies and ranks them
type Scanner struct {
	broker           interfaces.BrokerService
	options          interfaces.OptionDataService
	analysis         *TechnicalAnalysisService
	advisor          Advisor
	storage          ScanStorage
	store            *OpportunityStore
	journal          *ActivityLogger
	headlines        HeadlineSource
	defaultThreshold float64
	logger           *logrus.Logger
	now              func() time.Time
}

// NewScanner creates a scanner. options may be nil, in which case theoretical chains are used.
func NewScanner(
	broker interfaces.BrokerService,
	options interfaces.OptionDataService,
	analysis *TechnicalAnalysisService,
	advisor Advisor,
	storage ScanStorage,
	store *OpportunityStore,
	journal *ActivityLogger,
	defaultThreshold float64,
) *Scanner {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if advisor == nil {
		advisor = NoopAdvisor{}
	}

	return &Scanner{
		broker:           broker,
		options:          options,
		analysis:         analysis,
		advisor:          advisor,
		storage:          storage,
		store:            store,
		journal:          journal,
		defaultThreshold: defaultThreshold,
		logger:           logger,
		now:              time.Now,
	}
}

type symbolEvaluation struct {
	symbol      string
	opportunity *interfaces.Opportunity
	signal      *models.DBSignal
	err         error
}

// Scan evaluates the symbols, ranks what qualifies and replaces the session's previous results
func (s *Scanner) Scan(ctx context.Context, sessionID string, symbols []string) (*ScanResult, error) {
	symbols = normalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	strategies, threshold := s.strategyFromSettings()
	scanID := uuid.NewString()
	now := s.now()

	s.logger.WithFields(logrus.Fields{
		"scan_id":    scanID,
		"session":    sessionID,
		"symbols":    len(symbols),
		"threshold":  threshold,
		"strategies": strings.Join(strategies.Enabled, ","),
	}).Info("Starting scan")

	evaluations := make([]symbolEvaluation, len(symbols))
	sem := make(chan struct{}, scanConcurrency)
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			evaluations[i] = s.evaluateSymbol(ctx, scanID, symbol, strategies, now)
		}(i, symbol)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	result := &ScanResult{
		ScanID:    scanID,
		SessionID: sessionID,
		ScannedAt: now,
		Threshold: threshold,
		Symbols:   symbols,
	}

	var candidates []interfaces.Opportunity
	for _, ev := range evaluations {
		if ev.err != nil {
			s.logger.WithError(ev.err).WithField("symbol", ev.symbol).Warn("Symbol skipped")
			result.Rejected = append(result.Rejected, SymbolOutcome{Symbol: ev.symbol, Reason: ev.err.Error()})
			continue
		}
		if ev.opportunity != nil {
			candidates = append(candidates, *ev.opportunity)
		}
	}

	result.Opportunities = analytics.Rank(candidates, threshold)

	accepted := make(map[string]bool, len(result.Opportunities))
	for _, o := range result.Opportunities {
		accepted[o.Symbol] = true
	}

	var signals []*models.DBSignal
	for _, ev := range evaluations {
		if ev.signal == nil {
			continue
		}
		ev.signal.Accepted = accepted[ev.symbol]
		if ev.opportunity != nil && !ev.signal.Accepted {
			ev.signal.Reason = fmt.Sprintf("confidence %.2f below threshold %.2f", ev.opportunity.Confidence, threshold)
			result.Rejected = append(result.Rejected, SymbolOutcome{Symbol: ev.symbol, Reason: ev.signal.Reason})
		} else if ev.opportunity == nil {
			result.Rejected = append(result.Rejected, SymbolOutcome{Symbol: ev.symbol, Reason: ev.signal.Reason})
		}
		signals = append(signals, ev.signal)
	}

	if err := s.storage.SaveSignals(signals); err != nil {
		s.logger.WithError(err).Error("Failed to persist scan signals")
	}

	if s.store != nil && sessionID != "" {
		s.store.Put(sessionID, result)
	}
	if s.journal != nil {
		if err := s.journal.LogScan(result); err != nil {
			s.logger.WithError(err).Warn("Failed to journal scan")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"scan_id":       scanID,
		"opportunities": len(result.Opportunities),
		"rejected":      len(result.Rejected),
	}).Info("Scan complete")

	return result, nil
}

// WithHeadlines adds recent news titles to advisor prompts
func (s *Scanner) WithHeadlines(source HeadlineSource) *Scanner {
	s.headlines = source
	return s
}

// ScanWatchlist scans every watchlist symbol under the given session
func (s *Scanner) ScanWatchlist(ctx context.Context, sessionID string) (*ScanResult, error) {
	items, err := s.storage.ListWatchlist()
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}

	symbols := make([]string, len(items))
	for i, item := range items {
		symbols[i] = item.Symbol
	}
	return s.Scan(ctx, sessionID, symbols)
}

// Opportunities returns the latest ranked results for a session
func (s *Scanner) Opportunities(sessionID string) (*ScanResult, bool) {
	if s.store == nil {
		return nil, false
	}
	return s.store.Get(sessionID)
}

// AnalyzeSymbol returns the technical picture for one symbol, including its RSI gauge
func (s *Scanner) AnalyzeSymbol(ctx context.Context, symbol string) (*AnalysisResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNoSymbols
	}

	now := s.now()
	bars, err := s.broker.GetHistoricalBars(ctx, symbol, now.AddDate(0, 0, -barLookbackDays), now)
	if err != nil {
		return nil, fmt.Errorf("failed to get bars: %w", err)
	}
	return s.analysis.Analyze(symbol, bars)
}

func (s *Scanner) evaluateSymbol(ctx context.Context, scanID, symbol string, strategies *StrategySet, now time.Time) symbolEvaluation {
	ev := symbolEvaluation{symbol: symbol}

	bars, err := s.broker.GetHistoricalBars(ctx, symbol, now.AddDate(0, 0, -barLookbackDays), now)
	if err != nil {
		ev.err = fmt.Errorf("failed to get bars: %w", err)
		return ev
	}

	analysis, err := s.analysis.Analyze(symbol, bars)
	if err != nil {
		ev.err = err
		return ev
	}

	var calls, puts []*interfaces.OptionContract
	if strategies.Uses(StrategyCoveredCall) || strategies.Uses(StrategyIronCondor) {
		calls = s.callChain(ctx, symbol, analysis, strategies.ExpiryDays(), now)
	}
	if strategies.Uses(StrategyPutCreditSpread) || strategies.Uses(StrategyIronCondor) {
		puts = s.putChain(ctx, symbol, analysis, strategies.ExpiryDays(), now)
	}
	pick := strategies.Evaluate(analysis, calls, puts)

	ev.signal = &models.DBSignal{
		ScanID:     scanID,
		Symbol:     symbol,
		Strategy:   pick.Strategy,
		RSI:        analysis.RSI,
		Zone:       string(analysis.Gauge.Zone),
		Confidence: analysis.Confidence / 100,
		Reason:     fmt.Sprintf("%s: %s", pick.Recommendation.Action, pick.Recommendation.Reason),
	}

	// only an actionable verdict becomes an opportunity
	if !pick.Actionable() {
		return ev
	}

	confidence := analysis.Confidence / 100
	commentary := pick.Recommendation.Reason
	if s.advisor.Available() {
		if advice := s.consultAdvisor(ctx, symbol, bars, analysis, pick); advice != nil {
			confidence = advice.Confidence
			if advice.Analysis != "" {
				commentary = advice.Analysis
			}
		}
	}

	estimated := analytics.Round2(decimal.NewFromFloat(pick.EstimatedReturn)).InexactFloat64()
	ev.signal.Confidence = confidence
	ev.signal.EstimatedReturn = estimated
	ev.opportunity = &interfaces.Opportunity{
		Symbol:          symbol,
		Strategy:        pick.Strategy,
		Confidence:      confidence,
		EstimatedReturn: estimated,
		CurrentPrice:    analysis.CurrentPrice,
		RSI:             analysis.RSI,
		Call:            pick.Call,
		Legs:            pick.Legs,
		Commentary:      commentary,
	}
	return ev
}

// callChain prefers the live chain and falls back to theoretical calls
func (s *Scanner) callChain(ctx context.Context, symbol string, analysis *AnalysisResult, expiryDays int, now time.Time) []*interfaces.OptionContract {
	if s.options != nil {
		calls, err := s.options.FindCallsNearDTE(ctx, symbol, expiryDays, dteTolerance)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Option chain unavailable, using theoretical calls")
		} else if len(calls) > 0 {
			return calls
		}
	}
	return TheoreticalCalls(symbol, analysis.CurrentPrice, analysis.Volatility, now)
}

// putChain is callChain for puts
func (s *Scanner) putChain(ctx context.Context, symbol string, analysis *AnalysisResult, expiryDays int, now time.Time) []*interfaces.OptionContract {
	if s.options != nil {
		puts, err := s.options.FindPutsNearDTE(ctx, symbol, expiryDays, dteTolerance)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Put chain unavailable, using theoretical puts")
		} else if len(puts) > 0 {
			return puts
		}
	}
	return TheoreticalPuts(symbol, analysis.CurrentPrice, analysis.Volatility, now)
}

func (s *Scanner) consultAdvisor(ctx context.Context, symbol string, bars []*interfaces.Bar, analysis *AnalysisResult, pick StrategyPick) *Advice {
	closes := closesOf(bars)
	if len(closes) > promptCloses {
		closes = closes[len(closes)-promptCloses:]
	}
	change := 0.0
	if len(closes) > 0 && closes[0] != 0 {
		change = (closes[len(closes)-1] - closes[0]) / closes[0] * 100
	}

	advisorCtx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()

	var headlines []string
	if s.headlines != nil {
		items, err := s.headlines.Headlines(advisorCtx, symbol, promptHeadlines)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Headlines unavailable")
		}
		headlines = headlineTitles(items)
	}

	advice, err := s.advisor.AnalyzeCandidate(advisorCtx, CandidateContext{
		Symbol:            symbol,
		CurrentPrice:      analysis.CurrentPrice,
		PriceChange30DPct: change,
		RecentCloses:      closes,
		RSI:               analysis.RSI,
		Zone:              string(analysis.Gauge.Zone),
		Volatility:        analysis.Volatility,
		Signal:            analysis.Signal,
		Strategy:          pick.Strategy,
		Strike:            pick.Strike,
		Premium:           pick.Premium,
		DaysToExpiry:      pick.DTE,
		Headlines:         headlines,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":  symbol,
			"advisor": s.advisor.Name(),
		}).Warn("Advisor failed, keeping technical confidence")
		return nil
	}
	return advice
}

func (s *Scanner) strategyFromSettings() (*StrategySet, float64) {
	threshold := s.defaultThreshold
	params := StrategyParams{RiskLevel: RiskModerate, ProfitTargetPct: 5, StopLossPct: 3, OptionsExpiryDays: 30}

	settings, err := s.storage.GetSettings()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load settings, using defaults")
		return NewStrategySet(params, nil), threshold
	}

	enabled, err := ParseStrategies(settings.EnabledStrategies)
	if err != nil {
		s.logger.WithError(err).Warn("Bad enabled strategies, using covered calls only")
		enabled = nil
	}

	params = strategyParamsFrom(settings)
	if analytics.ValidateThreshold(settings.ConfidenceThreshold) == nil {
		threshold = settings.ConfidenceThreshold
	}
	return NewStrategySet(params, enabled), threshold
}

func strategyParamsFrom(settings *models.DBSettings) StrategyParams {
	level, err := ParseRiskLevel(settings.RiskLevel)
	if err != nil {
		level = RiskModerate
	}
	return StrategyParams{
		RiskLevel:         level,
		ProfitTargetPct:   settings.ProfitTargetPercentage,
		StopLossPct:       settings.StopLossPercentage,
		OptionsExpiryDays: settings.OptionsExpiryDays,
	}
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	return out
}
