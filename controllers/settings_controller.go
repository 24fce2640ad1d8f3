package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"arbion-trader/analytics"
	"arbion-trader/models"
	"arbion-trader/services"

	"github.com/gin-gonic/gin"
)

// SettingsStore is the strategy settings persistence
type SettingsStore interface {
	GetSettings() (*models.DBSettings, error)
	SaveSettings(settings *models.DBSettings) error
}

// SettingsController handles strategy settings
type SettingsController struct {
	store SettingsStore
}

// NewSettingsController creates a new settings controller
func NewSettingsController(store SettingsStore) *SettingsController {
	return &SettingsController{store: store}
}

// Settings is the API view of the strategy settings
type Settings struct {
	RiskLevel              string               `json:"risk_level"`
	MaxPositionSize        float64              `json:"max_position_size"`
	ProfitTargetPercentage float64              `json:"profit_target_percentage"`
	StopLossPercentage     float64              `json:"stop_loss_percentage"`
	OptionsExpiryDays      int                  `json:"options_expiry_days"`
	ConfidenceThreshold    float64              `json:"confidence_threshold"`
	EnabledStrategies      []string             `json:"enabled_strategies"`
	Profile                services.RiskProfile `json:"profile"`
}

// SettingsUpdate holds the fields a PUT may change; omitted fields keep their value
type SettingsUpdate struct {
	RiskLevel              *string   `json:"risk_level"`
	MaxPositionSize        *float64  `json:"max_position_size"`
	ProfitTargetPercentage *float64  `json:"profit_target_percentage"`
	StopLossPercentage     *float64  `json:"stop_loss_percentage"`
	OptionsExpiryDays      *int      `json:"options_expiry_days"`
	ConfidenceThreshold    *float64  `json:"confidence_threshold"`
	EnabledStrategies      *[]string `json:"enabled_strategies"`
}

func toSettings(s *models.DBSettings) Settings {
	level, err := services.ParseRiskLevel(s.RiskLevel)
	if err != nil {
		level = services.RiskModerate
	}
	enabled, err := services.ParseStrategies(s.EnabledStrategies)
	if err != nil {
		enabled = []string{services.StrategyCoveredCall}
	}
	return Settings{
		RiskLevel:              string(level),
		MaxPositionSize:        s.MaxPositionSize,
		ProfitTargetPercentage: s.ProfitTargetPercentage,
		StopLossPercentage:     s.StopLossPercentage,
		OptionsExpiryDays:      s.OptionsExpiryDays,
		ConfidenceThreshold:    s.ConfidenceThreshold,
		EnabledStrategies:      enabled,
		Profile:                services.ProfileFor(level),
	}
}

// HandleGetSettings returns the current settings
// GET /api/v1/settings
func (sc *SettingsController) HandleGetSettings(c *gin.Context) {
	settings, err := sc.store.GetSettings()
	if err != nil {
		respondError(c, "Failed to load settings", err)
		return
	}

	c.JSON(http.StatusOK, toSettings(settings))
}

// HandleUpdateSettings validates and saves a settings change
// PUT /api/v1/settings
func (sc *SettingsController) HandleUpdateSettings(c *gin.Context) {
	var req SettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	settings, err := sc.store.GetSettings()
	if err != nil {
		respondError(c, "Failed to load settings", err)
		return
	}

	if err := applySettingsUpdate(settings, req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid settings",
			"details": err.Error(),
		})
		return
	}

	if err := sc.store.SaveSettings(settings); err != nil {
		respondError(c, "Failed to save settings", err)
		return
	}

	c.JSON(http.StatusOK, toSettings(settings))
}

func applySettingsUpdate(settings *models.DBSettings, req SettingsUpdate) error {
	if req.RiskLevel != nil {
		level, err := services.ParseRiskLevel(*req.RiskLevel)
		if err != nil {
			return err
		}
		settings.RiskLevel = string(level)
	}
	if req.MaxPositionSize != nil {
		if *req.MaxPositionSize <= 0 {
			return fmt.Errorf("max_position_size must be positive")
		}
		settings.MaxPositionSize = *req.MaxPositionSize
	}
	if req.ProfitTargetPercentage != nil {
		if *req.ProfitTargetPercentage <= 0 {
			return fmt.Errorf("profit_target_percentage must be positive")
		}
		settings.ProfitTargetPercentage = *req.ProfitTargetPercentage
	}
	if req.StopLossPercentage != nil {
		if *req.StopLossPercentage <= 0 {
			return fmt.Errorf("stop_loss_percentage must be positive")
		}
		settings.StopLossPercentage = *req.StopLossPercentage
	}
	if req.OptionsExpiryDays != nil {
		if *req.OptionsExpiryDays < 7 || *req.OptionsExpiryDays > 365 {
			return fmt.Errorf("options_expiry_days must be between 7 and 365")
		}
		settings.OptionsExpiryDays = *req.OptionsExpiryDays
	}
	if req.ConfidenceThreshold != nil {
		if err := analytics.ValidateThreshold(*req.ConfidenceThreshold); err != nil {
			return err
		}
		settings.ConfidenceThreshold = *req.ConfidenceThreshold
	}
	if req.EnabledStrategies != nil {
		enabled, err := services.ParseStrategies(strings.Join(*req.EnabledStrategies, ","))
		if err != nil {
			return err
		}
		settings.EnabledStrategies = strings.Join(enabled, ",")
	}
	return nil
}
