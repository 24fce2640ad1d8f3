package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"arbion-trader/interfaces"
	"arbion-trader/models"
)

func newTestScanner(t *testing.T, store *memStore, advisor Advisor) (*Scanner, *OpportunityStore, *ActivityLogger) {
	t.Helper()
	broker := &fakeBroker{
		bars:    map[string][]*interfaces.Bar{"UP": risingBars("UP", 120, 100)},
		barsErr: map[string]error{"BAD": errors.New("no data")},
	}
	opportunities := NewOpportunityStore(time.Minute)
	journal := NewActivityLogger(t.TempDir())
	scanner := NewScanner(broker, nil, NewTechnicalAnalysisService(), advisor, store, opportunities, journal, 0.7)
	return scanner, opportunities, journal
}

func TestScanRanksAndStoresSession(t *testing.T) {
	store := newMemStore()
	advisor := &fixedAdvisor{advice: &Advice{Provider: "fixed", Analysis: "Looks good", Confidence: 0.9}}
	scanner, opportunities, journal := newTestScanner(t, store, advisor)

	result, err := scanner.Scan(context.Background(), "sess-1", []string{"up", "UP", " ", "BAD"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if strings.Join(result.Symbols, ",") != "UP,BAD" {
		t.Fatalf("symbols=%v want=[UP BAD]", result.Symbols)
	}
	if len(result.Opportunities) != 1 {
		t.Fatalf("opportunities=%d want=1", len(result.Opportunities))
	}
	opp := result.Opportunities[0]
	if opp.Symbol != "UP" || opp.Confidence != 0.9 || opp.Commentary != "Looks good" {
		t.Fatalf("opportunity=%+v", opp)
	}
	if opp.Call == nil || !opp.Call.Theoretical {
		t.Fatalf("expected a theoretical call without an options service: %+v", opp.Call)
	}
	if opp.EstimatedReturn <= 0 {
		t.Fatalf("estimated return=%v want positive", opp.EstimatedReturn)
	}

	if len(result.Rejected) != 1 || result.Rejected[0].Symbol != "BAD" {
		t.Fatalf("rejected=%+v want BAD only", result.Rejected)
	}

	if len(store.signals) != 1 || !store.signals[0].Accepted || store.signals[0].ScanID != result.ScanID {
		t.Fatalf("signals=%+v", store.signals)
	}

	cached, ok := opportunities.Get("sess-1")
	if !ok || cached.ScanID != result.ScanID {
		t.Fatalf("session results not stored")
	}
	if got := journal.GetCurrentLog().Summary.ScansRun; got != 1 {
		t.Fatalf("journaled scans=%d want=1", got)
	}
}

func TestScanThresholdFromSettings(t *testing.T) {
	store := newMemStore()
	store.settings.ConfidenceThreshold = 0.95
	advisor := &fixedAdvisor{advice: &Advice{Confidence: 0.9}}
	scanner, _, _ := newTestScanner(t, store, advisor)

	result, err := scanner.Scan(context.Background(), "sess", []string{"UP"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.Threshold != 0.95 {
		t.Fatalf("threshold=%v want=0.95", result.Threshold)
	}
	if len(result.Opportunities) != 0 {
		t.Fatalf("opportunities=%d want=0", len(result.Opportunities))
	}
	if len(result.Rejected) != 1 || !strings.Contains(result.Rejected[0].Reason, "below threshold") {
		t.Fatalf("rejected=%+v", result.Rejected)
	}
	if store.signals[0].Accepted {
		t.Fatalf("signal should not be accepted")
	}
}

func TestScanAdvisorFailureKeepsTechnicalConfidence(t *testing.T) {
	store := newMemStore()
	store.settings.ConfidenceThreshold = 0
	advisor := &fixedAdvisor{err: errors.New("timeout")}
	scanner, _, _ := newTestScanner(t, store, advisor)

	result, err := scanner.Scan(context.Background(), "sess", []string{"UP"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if advisor.calls != 1 {
		t.Fatalf("advisor calls=%d want=1", advisor.calls)
	}

	analysis, _ := NewTechnicalAnalysisService().Analyze("UP", risingBars("UP", 120, 100))
	if len(result.Opportunities) != 1 {
		t.Fatalf("opportunities=%d want=1", len(result.Opportunities))
	}
	if got, want := result.Opportunities[0].Confidence, analysis.Confidence/100; got != want {
		t.Fatalf("confidence=%v want=%v", got, want)
	}
}

func TestScanWithoutAdvisor(t *testing.T) {
	store := newMemStore()
	scanner, _, _ := newTestScanner(t, store, nil)

	if _, err := scanner.Scan(context.Background(), "sess", []string{"UP"}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(store.signals) != 1 {
		t.Fatalf("signals=%d want=1", len(store.signals))
	}
}

func TestScanNoSymbols(t *testing.T) {
	scanner, _, _ := newTestScanner(t, newMemStore(), nil)
	if _, err := scanner.Scan(context.Background(), "sess", []string{"", "  "}); !errors.Is(err, ErrNoSymbols) {
		t.Fatalf("err=%v want=ErrNoSymbols", err)
	}
}

func TestScanWatchlist(t *testing.T) {
	store := newMemStore()
	store.watchlist = []*models.DBWatchlistItem{{Symbol: "UP"}, {Symbol: "MSFT"}}
	scanner, opportunities, _ := newTestScanner(t, store, nil)

	result, err := scanner.ScanWatchlist(context.Background(), ScheduledSession)
	if err != nil {
		t.Fatalf("scan watchlist: %v", err)
	}
	if len(result.Symbols) != 2 {
		t.Fatalf("symbols=%v want 2", result.Symbols)
	}
	if _, ok := opportunities.Get(ScheduledSession); !ok {
		t.Fatalf("scheduled session not stored")
	}
}

func TestAnalyzeSymbol(t *testing.T) {
	scanner, _, _ := newTestScanner(t, newMemStore(), nil)

	result, err := scanner.AnalyzeSymbol(context.Background(), " up ")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Symbol != "UP" || result.Gauge.Zone == "" {
		t.Fatalf("result=%+v", result)
	}
	if _, err := scanner.AnalyzeSymbol(context.Background(), "BAD"); err == nil {
		t.Fatalf("expected error for failing bars")
	}
}

// fallingBars mirrors risingBars into a steady downtrend
func fallingBars(symbol string, n int, start float64) []*interfaces.Bar {
	bars := risingBars(symbol, n, start)
	price := start
	for i, bar := range bars {
		wobble := -0.015
		if i%2 == 1 {
			wobble = 0.008
		}
		price *= 1 + wobble
		bar.Open, bar.Close = price, price
		bar.High, bar.Low = price*1.01, price*0.99
	}
	return bars
}

func TestScanHoldVerdictIsNotAnOpportunity(t *testing.T) {
	store := newMemStore()
	store.settings.ConfidenceThreshold = 0
	advisor := &fixedAdvisor{advice: &Advice{Confidence: 0.9}}
	scanner, _, _ := newTestScanner(t, store, advisor)
	scanner.broker.(*fakeBroker).bars["DOWN"] = fallingBars("DOWN", 120, 100)

	result, err := scanner.Scan(context.Background(), "sess", []string{"DOWN"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Fatalf("opportunities=%+v want none", result.Opportunities)
	}
	if advisor.calls != 0 {
		t.Fatalf("advisor calls=%d want=0", advisor.calls)
	}
	if len(result.Rejected) != 1 || !strings.HasPrefix(result.Rejected[0].Reason, ActionHold+":") {
		t.Fatalf("rejected=%+v want a HOLD reason", result.Rejected)
	}
	if len(store.signals) != 1 || store.signals[0].Accepted || !strings.HasPrefix(store.signals[0].Reason, ActionHold) {
		t.Fatalf("signals=%+v", store.signals)
	}
}

func TestScanEnabledPutCreditSpread(t *testing.T) {
	store := newMemStore()
	store.settings.EnabledStrategies = "put_credit_spread"
	advisor := &fixedAdvisor{advice: &Advice{Confidence: 0.9}}
	scanner, _, _ := newTestScanner(t, store, advisor)

	result, err := scanner.Scan(context.Background(), "sess", []string{"UP"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Opportunities) != 1 {
		t.Fatalf("opportunities=%d want=1 rejected=%+v", len(result.Opportunities), result.Rejected)
	}
	opp := result.Opportunities[0]
	if opp.Strategy != StrategyPutCreditSpread || opp.Call != nil {
		t.Fatalf("opportunity=%+v want put spread without a call", opp)
	}
	if len(opp.Legs) != 2 || opp.Legs[0].ContractType != "put" || !opp.Legs[0].Theoretical {
		t.Fatalf("legs=%+v want two theoretical puts", opp.Legs)
	}
	if advisor.last.Strategy != StrategyPutCreditSpread {
		t.Fatalf("advisor strategy=%q want=%q", advisor.last.Strategy, StrategyPutCreditSpread)
	}
	if store.signals[0].Strategy != StrategyPutCreditSpread {
		t.Fatalf("signal strategy=%q", store.signals[0].Strategy)
	}
}

func TestScanUnknownStrategySettingFallsBack(t *testing.T) {
	store := newMemStore()
	store.settings.EnabledStrategies = "collar"
	scanner, _, _ := newTestScanner(t, store, &fixedAdvisor{advice: &Advice{Confidence: 0.9}})

	result, err := scanner.Scan(context.Background(), "sess", []string{"UP"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Opportunities) != 1 || result.Opportunities[0].Strategy != StrategyCoveredCall {
		t.Fatalf("opportunities=%+v want one covered call", result.Opportunities)
	}
}
