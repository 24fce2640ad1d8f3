package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"arbion-trader/analytics"
	"arbion-trader/interfaces"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	snapshotBatchSize = 100
	maxContractPages  = 5
)

// AlpacaOptionsDataService reads option contracts from the trading API and quotes from the data API
type AlpacaOptionsDataService struct {
	apiKey     string
	secretKey  string
	tradingURL string
	dataURL    string
	logger     *logrus.Logger
	client     *http.Client
	now        func() time.Time
}

// NewAlpacaOptionsDataService creates a new Alpaca options data service
func NewAlpacaOptionsDataService(apiKey, secretKey, tradingURL, dataURL string) *AlpacaOptionsDataService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &AlpacaOptionsDataService{
		apiKey:     apiKey,
		secretKey:  secretKey,
		tradingURL: strings.TrimRight(tradingURL, "/"),
		dataURL:    strings.TrimRight(dataURL, "/"),
		logger:     logger,
		client:     &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// AlpacaOptionsSnapshot represents Alpaca's options snapshot response
type AlpacaOptionsSnapshot struct {
	Snapshots     map[string]AlpacaOptionContract `json:"snapshots"`
	NextPageToken string                          `json:"next_page_token"`
}

// AlpacaOptionContract represents a contract snapshot from Alpaca
type AlpacaOptionContract struct {
	LatestQuote       AlpacaQuote  `json:"latestQuote"`
	Greeks            AlpacaGreeks `json:"greeks"`
	ImpliedVolatility float64      `json:"impliedVolatility"`
}

// AlpacaQuote represents quote data
type AlpacaQuote struct {
	Timestamp time.Time `json:"t"`
	BidPrice  float64   `json:"bp"`
	AskPrice  float64   `json:"ap"`
}

// AlpacaGreeks represents Greeks data
type AlpacaGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// AlpacaOptionChainResponse represents the option contracts response
type AlpacaOptionChainResponse struct {
	OptionContracts []AlpacaOptionChainContract `json:"option_contracts"`
	NextPageToken   string                      `json:"next_page_token"`
}

// AlpacaOptionChainContract represents contract metadata; numeric fields arrive as strings
type AlpacaOptionChainContract struct {
	Symbol           string          `json:"symbol"`
	UnderlyingSymbol string          `json:"underlying_symbol"`
	ExpirationDate   string          `json:"expiration_date"`
	StrikePrice      decimal.Decimal `json:"strike_price"`
	Type             string          `json:"type"` // "call" or "put"
	OpenInterest     decimal.Decimal `json:"open_interest"`
}

// FindCallsNearDTE lists calls expiring within tolerance days of targetDTE, quoted and sorted by expiry then strike
func (s *AlpacaOptionsDataService) FindCallsNearDTE(ctx context.Context, underlying string, targetDTE, tolerance int) ([]*interfaces.OptionContract, error) {
	return s.findNearDTE(ctx, underlying, "call", targetDTE, tolerance)
}

// FindPutsNearDTE is FindCallsNearDTE for puts
func (s *AlpacaOptionsDataService) FindPutsNearDTE(ctx context.Context, underlying string, targetDTE, tolerance int) ([]*interfaces.OptionContract, error) {
	return s.findNearDTE(ctx, underlying, "put", targetDTE, tolerance)
}

func (s *AlpacaOptionsDataService) findNearDTE(ctx context.Context, underlying, contractType string, targetDTE, tolerance int) ([]*interfaces.OptionContract, error) {
	now := s.now()
	targetDate := now.AddDate(0, 0, targetDTE)
	startDate := targetDate.AddDate(0, 0, -tolerance)
	endDate := targetDate.AddDate(0, 0, tolerance)
	if startDate.Before(now) {
		startDate = now
	}

	params := url.Values{}
	params.Set("underlying_symbols", strings.ToUpper(underlying))
	params.Set("type", contractType)
	params.Set("status", "active")
	params.Set("expiration_date_gte", startDate.Format("2006-01-02"))
	params.Set("expiration_date_lte", endDate.Format("2006-01-02"))
	params.Set("limit", "500")

	s.logger.WithFields(logrus.Fields{
		"underlying": underlying,
		"type":       contractType,
		"targetDTE":  targetDTE,
		"dateRange":  fmt.Sprintf("%s to %s", params.Get("expiration_date_gte"), params.Get("expiration_date_lte")),
	}).Debug("Finding contracts near target DTE")

	var contracts []*interfaces.OptionContract
	for page := 0; page < maxContractPages; page++ {
		var chainResp AlpacaOptionChainResponse
		if err := s.get(ctx, s.tradingURL+"/v2/options/contracts?"+params.Encode(), &chainResp); err != nil {
			return nil, fmt.Errorf("failed to fetch option contracts: %w", err)
		}

		for _, c := range chainResp.OptionContracts {
			expDate, err := time.Parse("2006-01-02", c.ExpirationDate)
			if err != nil {
				s.logger.WithError(err).WithField("symbol", c.Symbol).Warn("Skipping contract with bad expiration")
				continue
			}
			contracts = append(contracts, &interfaces.OptionContract{
				Symbol:           c.Symbol,
				UnderlyingSymbol: c.UnderlyingSymbol,
				ContractType:     c.Type,
				StrikePrice:      c.StrikePrice.InexactFloat64(),
				ExpirationDate:   expDate,
				DTE:              analytics.DaysToExpiry(expDate, now),
				OpenInterest:     c.OpenInterest.IntPart(),
			})
		}

		if chainResp.NextPageToken == "" {
			break
		}
		params.Set("page_token", chainResp.NextPageToken)
	}

	if err := s.attachQuotes(ctx, contracts); err != nil {
		return nil, err
	}

	sort.SliceStable(contracts, func(i, j int) bool {
		if !contracts[i].ExpirationDate.Equal(contracts[j].ExpirationDate) {
			return contracts[i].ExpirationDate.Before(contracts[j].ExpirationDate)
		}
		return contracts[i].StrikePrice < contracts[j].StrikePrice
	})

	s.logger.WithFields(logrus.Fields{
		"underlying": underlying,
		"type":       contractType,
		"count":      len(contracts),
	}).Info("Found option contracts")
	return contracts, nil
}

// GetOptionSnapshot gets the latest quote and greeks for one contract
func (s *AlpacaOptionsDataService) GetOptionSnapshot(ctx context.Context, optionSymbol string) (*interfaces.OptionContract, error) {
	snapshots, err := s.fetchSnapshots(ctx, []string{optionSymbol})
	if err != nil {
		return nil, err
	}

	snap, ok := snapshots[optionSymbol]
	if !ok {
		return nil, fmt.Errorf("no snapshot data for %s", optionSymbol)
	}

	contract := &interfaces.OptionContract{Symbol: optionSymbol}
	applySnapshot(contract, snap)
	return contract, nil
}

func (s *AlpacaOptionsDataService) attachQuotes(ctx context.Context, contracts []*interfaces.OptionContract) error {
	for start := 0; start < len(contracts); start += snapshotBatchSize {
		end := start + snapshotBatchSize
		if end > len(contracts) {
			end = len(contracts)
		}

		symbols := make([]string, 0, end-start)
		for _, c := range contracts[start:end] {
			symbols = append(symbols, c.Symbol)
		}

		snapshots, err := s.fetchSnapshots(ctx, symbols)
		if err != nil {
			return err
		}
		for _, c := range contracts[start:end] {
			if snap, ok := snapshots[c.Symbol]; ok {
				applySnapshot(c, snap)
			}
		}
	}
	return nil
}

func (s *AlpacaOptionsDataService) fetchSnapshots(ctx context.Context, symbols []string) (map[string]AlpacaOptionContract, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("feed", "indicative")
	params.Set("limit", strconv.Itoa(snapshotBatchSize))

	var snapshot AlpacaOptionsSnapshot
	if err := s.get(ctx, s.dataURL+"/v1beta1/options/snapshots?"+params.Encode(), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}
	return snapshot.Snapshots, nil
}

func (s *AlpacaOptionsDataService) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	req.Header.Set("APCA-API-KEY-ID", s.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", s.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func applySnapshot(contract *interfaces.OptionContract, snap AlpacaOptionContract) {
	contract.Bid = snap.LatestQuote.BidPrice
	contract.Ask = snap.LatestQuote.AskPrice
	contract.Premium = (snap.LatestQuote.BidPrice + snap.LatestQuote.AskPrice) / 2
	contract.Delta = snap.Greeks.Delta
	contract.Gamma = snap.Greeks.Gamma
	contract.Theta = snap.Greeks.Theta
	contract.Vega = snap.Greeks.Vega
	contract.ImpliedVolatility = snap.ImpliedVolatility
}
