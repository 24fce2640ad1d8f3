package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ScheduledSession is the session ID under which scheduled scans are stored
const ScheduledSession = "scheduled"

const scheduledJobTimeout = 10 * time.Minute

// Scheduler runs the lifecycle job and optional watchlist scans on cron schedules
type Scheduler struct {
	cron      *cron.Cron
	lifecycle *TradeLifecycleService
	scanner   *Scanner
	logger    *logrus.Logger
}

// NewScheduler registers the jobs. An empty scanSchedule disables scheduled scans.
func NewScheduler(lifecycle *TradeLifecycleService, scanner *Scanner, lifecycleSchedule, scanSchedule string) (*Scheduler, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	s := &Scheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		lifecycle: lifecycle,
		scanner:   scanner,
		logger:    logger,
	}

	if lifecycle != nil && lifecycleSchedule != "" {
		if _, err := s.cron.AddFunc(lifecycleSchedule, s.runLifecycle); err != nil {
			return nil, fmt.Errorf("invalid lifecycle schedule %q: %w", lifecycleSchedule, err)
		}
	}
	if scanner != nil && scanSchedule != "" {
		if _, err := s.cron.AddFunc(scanSchedule, s.runScan); err != nil {
			return nil, fmt.Errorf("invalid scan schedule %q: %w", scanSchedule, err)
		}
	}

	return s, nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs, bounded by ctx
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with jobs still running")
	}
}

func (s *Scheduler) runLifecycle() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledJobTimeout)
	defer cancel()

	if _, err := s.lifecycle.Run(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled lifecycle pass failed")
	}
}

func (s *Scheduler) runScan() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledJobTimeout)
	defer cancel()

	result, err := s.scanner.ScanWatchlist(ctx, ScheduledSession)
	if err != nil {
		s.logger.WithError(err).Warn("Scheduled watchlist scan did not run")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"scan_id":       result.ScanID,
		"opportunities": len(result.Opportunities),
	}).Info("Scheduled watchlist scan complete")
}
