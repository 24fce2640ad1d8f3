package controllers

import (
	"net/http"
	"strings"

	"arbion-trader/services"

	"github.com/gin-gonic/gin"
)

// ActivityController serves the daily activity journal
type ActivityController struct {
	journal *services.ActivityLogger
}

// NewActivityController creates a new activity controller
func NewActivityController(journal *services.ActivityLogger) *ActivityController {
	return &ActivityController{journal: journal}
}

// NoteRequest is a free-form journal entry
type NoteRequest struct {
	Type      string                 `json:"type" binding:"required"`
	Action    string                 `json:"action" binding:"required"`
	Symbol    string                 `json:"symbol"`
	Reasoning string                 `json:"reasoning"`
	Details   map[string]interface{} `json:"details"`
}

// HandleGetCurrentActivity returns today's journal
// GET /api/v1/activity/current
func (ac *ActivityController) HandleGetCurrentActivity(c *gin.Context) {
	c.JSON(http.StatusOK, ac.journal.GetCurrentLog())
}

// HandleGetActivityByDate returns the journal for a YYYY-MM-DD date
// GET /api/v1/activity/:date
func (ac *ActivityController) HandleGetActivityByDate(c *gin.Context) {
	journal, err := ac.journal.GetLogForDate(c.Param("date"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// anything but a missing file is a malformed date
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":   "Activity log unavailable",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, journal)
}

// HandleListActivityLogs returns the dates that have a journal, newest first
// GET /api/v1/activity/logs
func (ac *ActivityController) HandleListActivityLogs(c *gin.Context) {
	dates, err := ac.journal.ListAvailableLogs()
	if err != nil {
		respondError(c, "Failed to list activity logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dates": dates,
		"count": len(dates),
	})
}

// HandleLogActivity appends a note to today's journal
// POST /api/v1/activity/log
func (ac *ActivityController) HandleLogActivity(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := ac.journal.LogActivity(req.Type, req.Action, symbol, req.Reasoning, req.Details); err != nil {
		respondError(c, "Failed to log activity", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Activity logged"})
}
