package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"arbion-trader/models"
	"arbion-trader/services"

	"github.com/gin-gonic/gin"
)

const (
	scanTimeout        = 5 * time.Minute
	defaultSignalLimit = 20
)

// SignalHistory is the stored signal audit trail
type SignalHistory interface {
	GetSignals(symbol string, limit int) ([]*models.DBSignal, error)
}

// ScanController handles opportunity scans and signal lookups
type ScanController struct {
	scanner *services.Scanner
	history SignalHistory
}

// NewScanController creates a new scan controller
func NewScanController(scanner *services.Scanner, history SignalHistory) *ScanController {
	return &ScanController{
		scanner: scanner,
		history: history,
	}
}

// ScanRequest lists symbols to scan; an empty list scans the watchlist
type ScanRequest struct {
	Symbols []string `json:"symbols"`
}

// HandleScan runs a scan and stores the ranked results for the caller's session
// POST /api/v1/scan
func (sc *ScanController) HandleScan(c *gin.Context) {
	var req ScanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"details": err.Error(),
			})
			return
		}
	}

	session := ensureSession(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), scanTimeout)
	defer cancel()

	var (
		result *services.ScanResult
		err    error
	)
	if len(req.Symbols) == 0 {
		result, err = sc.scanner.ScanWatchlist(ctx, session)
	} else {
		result, err = sc.scanner.Scan(ctx, session, req.Symbols)
	}
	if err != nil {
		respondError(c, "Scan failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleGetOpportunities returns the caller's latest ranked opportunities
// GET /api/v1/opportunities
func (sc *ScanController) HandleGetOpportunities(c *gin.Context) {
	session := sessionID(c)
	if session == "" {
		c.JSON(http.StatusOK, gin.H{
			"opportunities": []interface{}{},
			"count":         0,
		})
		return
	}

	result, ok := sc.scanner.Opportunities(session)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"session_id":    session,
			"opportunities": []interface{}{},
			"count":         0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":    session,
		"scan_id":       result.ScanID,
		"scanned_at":    result.ScannedAt,
		"threshold":     result.Threshold,
		"opportunities": result.Opportunities,
		"count":         len(result.Opportunities),
	})
}

// HandleGetSignal returns the technical picture and RSI gauge for a symbol
// GET /api/v1/signals/:symbol?limit=20
func (sc *ScanController) HandleGetSignal(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}

	limit := defaultSignalLimit
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	analysis, err := sc.scanner.AnalyzeSymbol(ctx, symbol)
	if err != nil {
		respondError(c, "Failed to analyze symbol", err)
		return
	}

	response := gin.H{
		"symbol":   analysis.Symbol,
		"gauge":    analysis.Gauge,
		"analysis": analysis,
	}
	if sc.history != nil {
		history, err := sc.history.GetSignals(symbol, limit)
		if err != nil {
			respondError(c, "Failed to load signal history", err)
			return
		}
		response["history"] = history
	}

	c.JSON(http.StatusOK, response)
}
