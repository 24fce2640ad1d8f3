package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"arbion-trader/analytics"
	"arbion-trader/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TradeController handles the trade book and dashboard endpoints
type TradeController struct {
	tradeService *services.TradeService
	statistics   *services.StatisticsService
}

// NewTradeController creates a new trade controller
func NewTradeController(tradeService *services.TradeService, statistics *services.StatisticsService) *TradeController {
	return &TradeController{
		tradeService: tradeService,
		statistics:   statistics,
	}
}

// CloseTradeRequest carries the realized profit/loss percentage
type CloseTradeRequest struct {
	ProfitLoss *decimal.Decimal `json:"profit_loss" binding:"required"`
}

// HandleGetDashboard returns account, positions and trade summary
// GET /api/v1/dashboard
func (tc *TradeController) HandleGetDashboard(c *gin.Context) {
	dash, err := tc.statistics.DashboardSnapshot(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to build dashboard", err)
		return
	}

	c.JSON(http.StatusOK, dash)
}

// HandleListTrades returns filtered trade history with statistics
// GET /api/v1/trades?type=COVERED_CALL&status=OPEN&days=30&symbol=AAPL
func (tc *TradeController) HandleListTrades(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history, err := tc.statistics.TradeStatistics(filter)
	if err != nil {
		respondError(c, "Failed to load trades", err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// HandleExportTrades streams the filtered trade history as CSV
// GET /api/v1/trades/export
func (tc *TradeController) HandleExportTrades(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("trades_%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := tc.statistics.ExportCSV(c.Writer, filter); err != nil {
		c.Error(err)
	}
}

// HandleRecordTrade records a trade entered by the user
// POST /api/v1/trades
func (tc *TradeController) HandleRecordTrade(c *gin.Context) {
	var req services.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	trade, err := tc.tradeService.RecordTrade(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Failed to record trade", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Trade recorded successfully",
		"trade":   trade,
	})
}

// HandleCloseTrade closes an open trade
// POST /api/v1/trades/:id/close
func (tc *TradeController) HandleCloseTrade(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid trade ID required"})
		return
	}

	var req CloseTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	trade, err := tc.tradeService.CloseTrade(c.Request.Context(), uint(id), *req.ProfitLoss)
	if err != nil {
		respondError(c, "Failed to close trade", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Trade closed successfully",
		"trade":   trade,
	})
}

func filterFromQuery(c *gin.Context) (analytics.TradeFilter, error) {
	filter := analytics.TradeFilter{
		TradeType: c.Query("type"),
		Status:    c.Query("status"),
		Symbol:    c.Query("symbol"),
	}
	if days := c.Query("days"); days != "" && days != "all" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("days must be a non-negative integer")
		}
		filter.LookbackDays = n
	}
	return filter, nil
}
