package controllers

import (
	"net/http"
	"strings"

	"arbion-trader/models"

	"github.com/gin-gonic/gin"
)

// WatchlistStore is the watchlist persistence
type WatchlistStore interface {
	AddWatchlistItem(symbol, notes string) (*models.DBWatchlistItem, error)
	RemoveWatchlistItem(symbol string) error
	ListWatchlist() ([]*models.DBWatchlistItem, error)
}

// WatchlistController handles watchlist endpoints
type WatchlistController struct {
	store WatchlistStore
}

// NewWatchlistController creates a new watchlist controller
func NewWatchlistController(store WatchlistStore) *WatchlistController {
	return &WatchlistController{store: store}
}

// WatchlistItem is the API view of a watchlist entry
type WatchlistItem struct {
	Symbol  string `json:"symbol"`
	Notes   string `json:"notes,omitempty"`
	AddedAt string `json:"added_at"`
}

func toWatchlistItem(item *models.DBWatchlistItem) WatchlistItem {
	return WatchlistItem{
		Symbol:  item.Symbol,
		Notes:   item.Notes,
		AddedAt: item.AddedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// HandleListWatchlist returns every watched symbol
// GET /api/v1/watchlist
func (wc *WatchlistController) HandleListWatchlist(c *gin.Context) {
	items, err := wc.store.ListWatchlist()
	if err != nil {
		respondError(c, "Failed to load watchlist", err)
		return
	}

	out := make([]WatchlistItem, len(items))
	for i, item := range items {
		out[i] = toWatchlistItem(item)
	}
	c.JSON(http.StatusOK, gin.H{
		"items": out,
		"count": len(out),
	})
}

// HandleAddWatchlistItem adds a symbol
// POST /api/v1/watchlist
func (wc *WatchlistController) HandleAddWatchlistItem(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}

	item, err := wc.store.AddWatchlistItem(req.Symbol, req.Notes)
	if err != nil {
		respondError(c, "Failed to add symbol", err)
		return
	}

	c.JSON(http.StatusCreated, toWatchlistItem(item))
}

// HandleRemoveWatchlistItem removes a symbol
// DELETE /api/v1/watchlist/:symbol
func (wc *WatchlistController) HandleRemoveWatchlistItem(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := wc.store.RemoveWatchlistItem(symbol); err != nil {
		respondError(c, "Failed to remove symbol", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Symbol removed"})
}
