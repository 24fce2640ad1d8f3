package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"arbion-trader/analytics"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	AdvisorNone   = "none"
	AdvisorOpenAI = "openai"
	AdvisorGemini = "gemini"
)

// Config holds process-level settings read from the environment
type Config struct {
	Port           string
	DatabasePath   string
	ActivityLogDir string
	LogLevel       string
	GinMode        string

	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaBaseURL   string
	AlpacaDataURL   string
	SimulationMode  bool

	AdvisorProvider string
	OpenAIAPIKey    string
	OpenAIModel     string
	GeminiAPIKey    string
	Headlines       bool

	ConfidenceThreshold float64
	ScanSchedule        string
	LifecycleSchedule   string
	OpportunityTTL      time.Duration
	DataRetention       time.Duration
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("No .env file loaded, using environment and defaults")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "4534"),
		DatabasePath:   getEnv("DATABASE_PATH", "./data/arbion.db"),
		ActivityLogDir: getEnv("ACTIVITY_LOG_DIR", "./activity_logs"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		GinMode:        getEnv("GIN_MODE", "release"),

		AlpacaAPIKey:    getEnv("ALPACA_API_KEY", ""),
		AlpacaSecretKey: getEnv("ALPACA_SECRET_KEY", ""),
		AlpacaBaseURL:   getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		AlpacaDataURL:   getEnv("ALPACA_DATA_URL", "https://data.alpaca.markets"),

		AdvisorProvider: strings.ToLower(getEnv("ADVISOR_PROVIDER", AdvisorNone)),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		Headlines:       getEnvAsBool("ADVISOR_HEADLINES", true),

		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", analytics.DefaultConfidenceThreshold),
		ScanSchedule:        getEnv("SCAN_SCHEDULE", ""),
		LifecycleSchedule:   getEnv("LIFECYCLE_SCHEDULE", "@every 15m"),
		OpportunityTTL:      getEnvAsDuration("OPPORTUNITY_TTL", 30*time.Minute),
		DataRetention:       getEnvAsDuration("DATA_RETENTION", 90*24*time.Hour),
	}

	hasKeys := cfg.AlpacaAPIKey != "" && cfg.AlpacaSecretKey != ""
	cfg.SimulationMode = getEnvAsBool("SIMULATION_MODE", !hasKeys)
	if !cfg.SimulationMode && !hasKeys {
		return nil, fmt.Errorf("ALPACA_API_KEY and ALPACA_SECRET_KEY are required when SIMULATION_MODE is false")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot fall back to a default
func (c *Config) Validate() error {
	if err := analytics.ValidateThreshold(c.ConfidenceThreshold); err != nil {
		return fmt.Errorf("CONFIDENCE_THRESHOLD: %w", err)
	}
	switch c.AdvisorProvider {
	case AdvisorNone:
	case AdvisorOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when ADVISOR_PROVIDER is %q", c.AdvisorProvider)
		}
	case AdvisorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when ADVISOR_PROVIDER is %q", c.AdvisorProvider)
		}
	default:
		return fmt.Errorf("unknown ADVISOR_PROVIDER %q", c.AdvisorProvider)
	}
	if c.OpportunityTTL <= 0 {
		return fmt.Errorf("OPPORTUNITY_TTL must be positive, got %s", c.OpportunityTTL)
	}
	if c.DataRetention <= 0 {
		return fmt.Errorf("DATA_RETENTION must be positive, got %s", c.DataRetention)
	}
	return nil
}

// ParseLogLevel returns the configured logrus level, defaulting to info
func (c *Config) ParseLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logrus.Warnf("Invalid float value for %s (%q), using default: %v", key, valueStr, fallback)
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		logrus.Warnf("Invalid boolean value for %s (%q), using default: %v", key, valueStr, fallback)
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logrus.Warnf("Invalid duration value for %s (%q), using default: %s", key, valueStr, fallback)
		return fallback
	}
	return value
}
