package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"arbion-trader/config"
	"arbion-trader/controllers"
	"arbion-trader/database"
	"arbion-trader/interfaces"
	"arbion-trader/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.SetLevel(cfg.ParseLogLevel())
	logrus.SetLevel(cfg.ParseLogLevel())

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	storage, err := database.NewLocalStorage(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer storage.Close()

	if err := storage.CleanupOldData(time.Now().Add(-cfg.DataRetention)); err != nil {
		logger.WithError(err).Warn("Failed to clean up old data")
	}

	var (
		broker  interfaces.BrokerService
		options interfaces.OptionDataService
	)
	if cfg.SimulationMode {
		logger.Warn("Running in simulation mode: broker data is synthetic")
		broker = services.NewSimulatedBroker()
	} else {
		broker = services.NewAlpacaBroker(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey, cfg.AlpacaBaseURL, cfg.AlpacaDataURL)
		options = services.NewAlpacaOptionsDataService(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey, cfg.AlpacaBaseURL, cfg.AlpacaDataURL)
	}

	advisor := newAdvisor(cfg)
	journal := services.NewActivityLogger(cfg.ActivityLogDir)
	scanner := services.NewScanner(
		broker,
		options,
		services.NewTechnicalAnalysisService(),
		advisor,
		storage,
		services.NewOpportunityStore(cfg.OpportunityTTL),
		journal,
		cfg.ConfidenceThreshold,
	)
	if advisor.Available() && cfg.Headlines {
		scanner.WithHeadlines(services.NewHeadlineService(""))
	}
	tradeService := services.NewTradeService(storage, journal)
	statistics := services.NewStatisticsService(storage, broker)
	lifecycle := services.NewTradeLifecycleService(storage, broker, journal)

	scheduler, err := services.NewScheduler(lifecycle, scanner, cfg.LifecycleSchedule, cfg.ScanSchedule)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure scheduler")
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(controllers.RequestLogger(logger))
	controllers.RegisterRoutes(router, controllers.Controllers{
		Trades:    controllers.NewTradeController(tradeService, statistics),
		Scans:     controllers.NewScanController(scanner, storage),
		Watchlist: controllers.NewWatchlistController(storage),
		Settings:  controllers.NewSettingsController(storage),
		Activity:  controllers.NewActivityController(journal),
		System:    controllers.NewSystemController(lifecycle, cfg.SimulationMode, advisor.Name()),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler.Start()
	go func() {
		logger.WithFields(logrus.Fields{
			"port":       cfg.Port,
			"simulation": cfg.SimulationMode,
			"advisor":    advisor.Name(),
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	scheduler.Stop(ctx)
}

func newAdvisor(cfg *config.Config) services.Advisor {
	switch cfg.AdvisorProvider {
	case config.AdvisorOpenAI:
		return services.NewOpenAIAdvisor(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")
	case config.AdvisorGemini:
		return services.NewGeminiAdvisor(cfg.GeminiAPIKey, "")
	}
	return services.NoopAdvisor{}
}
