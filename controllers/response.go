package controllers

import (
	"errors"
	"net/http"

	"arbion-trader/analytics"
	"arbion-trader/database"
	"arbion-trader/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
	sessionMaxAge = 7 * 24 * 60 * 60
)

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, services.ErrLogNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidTrade),
		errors.Is(err, services.ErrNoSymbols),
		errors.Is(err, analytics.ErrInvalidThreshold):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, message string, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// sessionID reads the caller's session from the header or cookie
func sessionID(c *gin.Context) string {
	if id := c.GetHeader(sessionHeader); id != "" {
		return id
	}
	if id, err := c.Cookie(sessionCookie); err == nil {
		return id
	}
	return ""
}

// ensureSession returns the caller's session, issuing a new one when absent
func ensureSession(c *gin.Context) string {
	id := sessionID(c)
	if id == "" {
		id = uuid.NewString()
		c.SetCookie(sessionCookie, id, sessionMaxAge, "/", "", false, true)
	}
	c.Header(sessionHeader, id)
	return id
}
