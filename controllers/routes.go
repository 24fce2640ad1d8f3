package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Controllers bundles every HTTP controller for route registration
type Controllers struct {
	Trades    *TradeController
	Scans     *ScanController
	Watchlist *WatchlistController
	Settings  *SettingsController
	Activity  *ActivityController
	System    *SystemController
}

// RegisterRoutes mounts the API on the engine
func RegisterRoutes(r *gin.Engine, ctrl Controllers) {
	r.GET("/health", ctrl.System.HandleHealth)

	api := r.Group("/api/v1")
	{
		api.GET("/dashboard", ctrl.Trades.HandleGetDashboard)

		api.GET("/trades", ctrl.Trades.HandleListTrades)
		api.GET("/trades/export", ctrl.Trades.HandleExportTrades)
		api.POST("/trades", ctrl.Trades.HandleRecordTrade)
		api.POST("/trades/:id/close", ctrl.Trades.HandleCloseTrade)

		api.POST("/scan", ctrl.Scans.HandleScan)
		api.GET("/opportunities", ctrl.Scans.HandleGetOpportunities)
		api.GET("/signals/:symbol", ctrl.Scans.HandleGetSignal)

		api.GET("/watchlist", ctrl.Watchlist.HandleListWatchlist)
		api.POST("/watchlist", ctrl.Watchlist.HandleAddWatchlistItem)
		api.DELETE("/watchlist/:symbol", ctrl.Watchlist.HandleRemoveWatchlistItem)

		api.GET("/settings", ctrl.Settings.HandleGetSettings)
		api.PUT("/settings", ctrl.Settings.HandleUpdateSettings)

		api.GET("/activity/current", ctrl.Activity.HandleGetCurrentActivity)
		api.GET("/activity/logs", ctrl.Activity.HandleListActivityLogs)
		api.GET("/activity/:date", ctrl.Activity.HandleGetActivityByDate)
		api.POST("/activity/log", ctrl.Activity.HandleLogActivity)

		api.GET("/lifecycle", ctrl.System.HandleGetLifecycle)
		api.POST("/lifecycle/run", ctrl.System.HandleRunLifecycle)
	}
}

// RequestLogger logs each request through logrus
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Warn("Request completed with errors")
			return
		}
		entry.Debug("Request completed")
	}
}
