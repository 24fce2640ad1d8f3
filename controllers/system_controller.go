package controllers

import (
	"net/http"
	"time"

	"arbion-trader/services"

	"github.com/gin-gonic/gin"
)

// SystemController serves health and lifecycle endpoints
type SystemController struct {
	lifecycle  *services.TradeLifecycleService
	simulation bool
	advisor    string
	startedAt  time.Time
}

// NewSystemController creates a new system controller
func NewSystemController(lifecycle *services.TradeLifecycleService, simulation bool, advisor string) *SystemController {
	return &SystemController{
		lifecycle:  lifecycle,
		simulation: simulation,
		advisor:    advisor,
		startedAt:  time.Now(),
	}
}

// HandleHealth reports liveness and the running mode
// GET /health
func (sc *SystemController) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"simulation": sc.simulation,
		"advisor":    sc.advisor,
		"uptime":     time.Since(sc.startedAt).Round(time.Second).String(),
	})
}

// HandleGetLifecycle returns the most recent lifecycle pass
// GET /api/v1/lifecycle
func (sc *SystemController) HandleGetLifecycle(c *gin.Context) {
	report := sc.lifecycle.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lifecycle has not run yet"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// HandleRunLifecycle runs a lifecycle pass immediately
// POST /api/v1/lifecycle/run
func (sc *SystemController) HandleRunLifecycle(c *gin.Context) {
	report, err := sc.lifecycle.Run(c.Request.Context())
	if err != nil {
		respondError(c, "Lifecycle pass failed", err)
		return
	}

	c.JSON(http.StatusOK, report)
}
