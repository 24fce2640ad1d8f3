package services

import (
	"time"

	"arbion-trader/interfaces"

	"github.com/patrickmn/go-cache"
)

// ScanResult is the outcome of one scan for one session
type ScanResult struct {
	ScanID        string                   `json:"scan_id"`
	SessionID     string                   `json:"session_id"`
	ScannedAt     time.Time                `json:"scanned_at"`
	Threshold     float64                  `json:"threshold"`
	Symbols       []string                 `json:"symbols"`
	Opportunities []interfaces.Opportunity `json:"opportunities"`
	Rejected      []SymbolOutcome          `json:"rejected,omitempty"`
}

// SymbolOutcome explains why a symbol produced no ranked opportunity
type SymbolOutcome struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// OpportunityStore keeps the latest scan per session for a limited time
type OpportunityStore struct {
	cache *cache.Cache
}

// NewOpportunityStore creates a store whose entries expire after ttl
func NewOpportunityStore(ttl time.Duration) *OpportunityStore {
	return &OpportunityStore{
		cache: cache.New(ttl, 2*ttl),
	}
}

// Put replaces the session's previous scan
func (s *OpportunityStore) Put(sessionID string, result *ScanResult) {
	s.cache.Set(sessionID, result, cache.DefaultExpiration)
}

// Get returns the session's latest scan, if it has not expired
func (s *OpportunityStore) Get(sessionID string) (*ScanResult, bool) {
	cached, found := s.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	result, ok := cached.(*ScanResult)
	return result, ok
}

// Clear drops the session's results
func (s *OpportunityStore) Clear(sessionID string) {
	s.cache.Delete(sessionID)
}

// Count returns the number of live sessions
func (s *OpportunityStore) Count() int {
	return s.cache.ItemCount()
}
