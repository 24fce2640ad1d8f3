package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"arbion-trader/analytics"
	"arbion-trader/database"
	"arbion-trader/services"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	storage, err := database.NewLocalStorage(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	broker := services.NewSimulatedBroker()
	journal := services.NewActivityLogger(filepath.Join(dir, "activity"))
	scanner := services.NewScanner(
		broker,
		nil,
		services.NewTechnicalAnalysisService(),
		services.NoopAdvisor{},
		storage,
		services.NewOpportunityStore(time.Minute),
		journal,
		analytics.DefaultConfidenceThreshold,
	)
	trades := services.NewTradeService(storage, journal)
	stats := services.NewStatisticsService(storage, broker)
	lifecycle := services.NewTradeLifecycleService(storage, broker, journal)

	r := gin.New()
	RegisterRoutes(r, Controllers{
		Trades:    NewTradeController(trades, stats),
		Scans:     NewScanController(scanner, storage),
		Watchlist: NewWatchlistController(storage),
		Settings:  NewSettingsController(storage),
		Activity:  NewActivityController(journal),
		System:    NewSystemController(lifecycle, true, "none"),
	})
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func coveredCallBody() map[string]interface{} {
	return map[string]interface{}{
		"symbol":        "aapl",
		"trade_type":    "COVERED_CALL",
		"quantity":      100,
		"price":         "2.50",
		"option_strike": "190",
		"option_expiry": time.Now().AddDate(0, 0, 30).UTC().Format(time.RFC3339),
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want=%d", w.Code, http.StatusOK)
	}
	body := decode(t, w)
	if body["status"] != "ok" || body["simulation"] != true {
		t.Fatalf("body=%v", body)
	}
}

func TestRecordAndCloseTrade(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/trades", coveredCallBody(), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("record status=%d body=%s", w.Code, w.Body.String())
	}
	trade := decode(t, w)["trade"].(map[string]interface{})
	if trade["symbol"] != "AAPL" || trade["status"] != "OPEN" {
		t.Fatalf("trade=%v", trade)
	}
	id := int(trade["id"].(float64))

	w = doJSON(r, http.MethodGet, "/api/v1/trades?status=OPEN", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d body=%s", w.Code, w.Body.String())
	}
	summary := decode(t, w)["summary"].(map[string]interface{})
	if summary["total_trades"].(float64) != 1 {
		t.Fatalf("summary=%v", summary)
	}
	if summary["premium_collected"] != "2.5" {
		t.Fatalf("premium_collected=%v want=2.5", summary["premium_collected"])
	}

	closePath := "/api/v1/trades/" + strconv.Itoa(id) + "/close"
	w = doJSON(r, http.MethodPost, closePath, map[string]interface{}{"profit_loss": "1.5"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close status=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, closePath, map[string]interface{}{"profit_loss": "1.5"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second close status=%d want=%d", w.Code, http.StatusBadRequest)
	}
}

func TestRecordTradeRejectsInvalidInput(t *testing.T) {
	r := newTestRouter(t)

	body := coveredCallBody()
	body["trade_type"] = "STRANGLE"
	if w := doJSON(r, http.MethodPost, "/api/v1/trades", body, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type status=%d want=%d", w.Code, http.StatusBadRequest)
	}

	body = coveredCallBody()
	delete(body, "option_strike")
	if w := doJSON(r, http.MethodPost, "/api/v1/trades", body, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing strike status=%d want=%d", w.Code, http.StatusBadRequest)
	}
}

func TestCloseTradeErrors(t *testing.T) {
	r := newTestRouter(t)

	if w := doJSON(r, http.MethodPost, "/api/v1/trades/abc/close", map[string]interface{}{"profit_loss": "1"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d want=%d", w.Code, http.StatusBadRequest)
	}
	if w := doJSON(r, http.MethodPost, "/api/v1/trades/999/close", map[string]interface{}{"profit_loss": "1"}, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing trade status=%d want=%d", w.Code, http.StatusNotFound)
	}
}

func TestListTradesRejectsBadDays(t *testing.T) {
	r := newTestRouter(t)

	if w := doJSON(r, http.MethodGet, "/api/v1/trades?days=soon", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d", w.Code, http.StatusBadRequest)
	}
	if w := doJSON(r, http.MethodGet, "/api/v1/trades?days=all", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("days=all status=%d want=%d", w.Code, http.StatusOK)
	}
}

func TestExportTrades(t *testing.T) {
	r := newTestRouter(t)
	doJSON(r, http.MethodPost, "/api/v1/trades", coveredCallBody(), nil)

	w := doJSON(r, http.MethodGet, "/api/v1/trades/export", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content-type=%q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d want=2: %q", len(lines), w.Body.String())
	}
	if !strings.HasPrefix(lines[0], "id,timestamp,symbol") {
		t.Fatalf("header=%q", lines[0])
	}
}

func TestDashboard(t *testing.T) {
	r := newTestRouter(t)
	doJSON(r, http.MethodPost, "/api/v1/trades", coveredCallBody(), nil)

	w := doJSON(r, http.MethodGet, "/api/v1/dashboard", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["open_covered_calls"].(float64) != 1 {
		t.Fatalf("open_covered_calls=%v want=1", body["open_covered_calls"])
	}
	if _, ok := body["account"]; !ok {
		t.Fatalf("account missing from dashboard")
	}
}

func TestWatchlist(t *testing.T) {
	r := newTestRouter(t)

	if w := doJSON(r, http.MethodPost, "/api/v1/watchlist", map[string]string{"symbol": "msft"}, nil); w.Code != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(r, http.MethodPost, "/api/v1/watchlist", map[string]string{"symbol": "MSFT"}, nil); w.Code != http.StatusConflict {
		t.Fatalf("duplicate status=%d want=%d", w.Code, http.StatusConflict)
	}
	if w := doJSON(r, http.MethodPost, "/api/v1/watchlist", map[string]string{"symbol": " "}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("blank status=%d want=%d", w.Code, http.StatusBadRequest)
	}

	w := doJSON(r, http.MethodGet, "/api/v1/watchlist", nil, nil)
	if got := decode(t, w)["count"].(float64); got != 1 {
		t.Fatalf("count=%v want=1", got)
	}

	if w := doJSON(r, http.MethodDelete, "/api/v1/watchlist/MSFT", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status=%d", w.Code)
	}
	if w := doJSON(r, http.MethodDelete, "/api/v1/watchlist/MSFT", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d want=%d", w.Code, http.StatusNotFound)
	}
}

func TestSettings(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/api/v1/settings", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	if got := decode(t, w)["risk_level"]; got != "moderate" {
		t.Fatalf("risk_level=%v want=moderate", got)
	}

	cases := []map[string]interface{}{
		{"confidence_threshold": 1.5},
		{"options_expiry_days": 3},
		{"risk_level": "reckless"},
		{"max_position_size": 0},
		{"enabled_strategies": []string{"covered_call", "wheel"}},
	}
	for _, body := range cases {
		if w := doJSON(r, http.MethodPut, "/api/v1/settings", body, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("body=%v status=%d want=%d", body, w.Code, http.StatusBadRequest)
		}
	}

	w = doJSON(r, http.MethodPut, "/api/v1/settings", map[string]interface{}{"risk_level": "conservative", "confidence_threshold": 0.8}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["risk_level"] != "conservative" || body["confidence_threshold"].(float64) != 0.8 {
		t.Fatalf("body=%v", body)
	}
}

func TestSettingsEnabledStrategies(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/api/v1/settings", nil, nil)
	if got := fmt.Sprint(decode(t, w)["enabled_strategies"]); got != "[covered_call]" {
		t.Fatalf("enabled_strategies=%s want=[covered_call]", got)
	}

	w = doJSON(r, http.MethodPut, "/api/v1/settings", map[string]interface{}{
		"enabled_strategies": []string{" Iron_Condor", "put_credit_spread", "iron_condor"},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", w.Code, w.Body.String())
	}
	if got := fmt.Sprint(decode(t, w)["enabled_strategies"]); got != "[iron_condor put_credit_spread]" {
		t.Fatalf("enabled_strategies=%s want=[iron_condor put_credit_spread]", got)
	}

	w = doJSON(r, http.MethodPut, "/api/v1/settings", map[string]interface{}{"enabled_strategies": []string{}}, nil)
	if got := fmt.Sprint(decode(t, w)["enabled_strategies"]); got != "[covered_call]" {
		t.Fatalf("enabled_strategies=%s want=[covered_call]", got)
	}
}

func TestScanEmptyWatchlist(t *testing.T) {
	r := newTestRouter(t)

	if w := doJSON(r, http.MethodPost, "/api/v1/scan", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestScanStoresOpportunitiesPerSession(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/v1/scan", ScanRequest{Symbols: []string{"AAPL", "MSFT"}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("scan status=%d body=%s", w.Code, w.Body.String())
	}
	session := w.Header().Get(sessionHeader)
	if session == "" {
		t.Fatalf("scan did not issue a session")
	}

	header := http.Header{sessionHeader: []string{session}}
	w = doJSON(r, http.MethodGet, "/api/v1/opportunities", nil, header)
	body := decode(t, w)
	if body["session_id"] != session {
		t.Fatalf("session_id=%v want=%s", body["session_id"], session)
	}
	if _, ok := body["scan_id"]; !ok {
		t.Fatalf("stored scan missing: %v", body)
	}

	other := http.Header{sessionHeader: []string{"someone-else"}}
	if got := decode(t, doJSON(r, http.MethodGet, "/api/v1/opportunities", nil, other))["count"].(float64); got != 0 {
		t.Fatalf("other session count=%v want=0", got)
	}
}

func TestOpportunitiesWithoutSession(t *testing.T) {
	r := newTestRouter(t)

	body := decode(t, doJSON(r, http.MethodGet, "/api/v1/opportunities", nil, nil))
	if body["count"].(float64) != 0 {
		t.Fatalf("count=%v want=0", body["count"])
	}
}

func TestSignal(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/api/v1/signals/aapl", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["symbol"] != "AAPL" {
		t.Fatalf("symbol=%v want=AAPL", body["symbol"])
	}
	if _, ok := body["gauge"].(map[string]interface{}); !ok {
		t.Fatalf("gauge missing: %v", body)
	}

	if w := doJSON(r, http.MethodGet, "/api/v1/signals/aapl?limit=0", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("limit=0 status=%d want=%d", w.Code, http.StatusBadRequest)
	}
}

func TestActivity(t *testing.T) {
	r := newTestRouter(t)

	note := map[string]interface{}{"type": "NOTE", "action": "REVIEW", "symbol": "AAPL", "reasoning": "weekly review"}
	if w := doJSON(r, http.MethodPost, "/api/v1/activity/log", note, nil); w.Code != http.StatusCreated {
		t.Fatalf("log status=%d body=%s", w.Code, w.Body.String())
	}

	w := doJSON(r, http.MethodGet, "/api/v1/activity/current", nil, nil)
	activities := decode(t, w)["activities"].([]interface{})
	if len(activities) != 1 {
		t.Fatalf("activities=%d want=1", len(activities))
	}

	if w := doJSON(r, http.MethodGet, "/api/v1/activity/yesterday", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status=%d want=%d", w.Code, http.StatusBadRequest)
	}
	if w := doJSON(r, http.MethodGet, "/api/v1/activity/2001-01-01", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing date status=%d want=%d", w.Code, http.StatusNotFound)
	}
}

func TestLifecycle(t *testing.T) {
	r := newTestRouter(t)

	if w := doJSON(r, http.MethodGet, "/api/v1/lifecycle", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("before run status=%d want=%d", w.Code, http.StatusNotFound)
	}
	if w := doJSON(r, http.MethodPost, "/api/v1/lifecycle/run", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("run status=%d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(r, http.MethodGet, "/api/v1/lifecycle", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("after run status=%d want=%d", w.Code, http.StatusOK)
	}
}
