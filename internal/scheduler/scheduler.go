package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pb-coding/voltvector-be/internal/ingestion"
)

const (
	DefaultUpdateSpec = "5-59/15 * * * *"
	DefaultVerifySpec = "30 3 * * *"

	updateTimeout = 10 * time.Minute
	verifyTimeout = time.Hour
)

// Jobs is the part of the ingestion engine run on a schedule.
type Jobs interface {
	UpdateEnergyDataJob(ctx context.Context, userIDs []int64, day time.Time) ingestion.RunReport
	VerifyConsistency(ctx context.Context, userIDs []int64, readOnly bool) []ingestion.GapReport
}

type Config struct {
	UpdateSpec string
	VerifySpec string
	Location   *time.Location
}

type Scheduler struct {
	ctx    context.Context
	jobs   Jobs
	cfg    Config
	logger *logrus.Logger
	cron   *cron.Cron
}

func NewScheduler(ctx context.Context, jobs Jobs, cfg Config, logger *logrus.Logger) *Scheduler {
	if cfg.UpdateSpec == "" {
		cfg.UpdateSpec = DefaultUpdateSpec
	}
	if cfg.VerifySpec == "" {
		cfg.VerifySpec = DefaultVerifySpec
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	cl := cronLogger{logger}
	return &Scheduler{
		ctx:    ctx,
		jobs:   jobs,
		cfg:    cfg,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start registers both jobs and starts the scheduler
func (s *Scheduler) Start() error {
	// upstream publishes a new interval every 15 minutes, fetch 5 minutes after
	if _, err := s.cron.AddFunc(s.cfg.UpdateSpec, s.updateEnergyData); err != nil {
		return fmt.Errorf("invalid update schedule %q: %w", s.cfg.UpdateSpec, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.VerifySpec, s.verifyConsistency); err != nil {
		return fmt.Errorf("invalid verify schedule %q: %w", s.cfg.VerifySpec, err)
	}
	s.cron.Start()
	return nil
}

// updateEnergyData pulls the latest window for every configured user
func (s *Scheduler) updateEnergyData() {
	ctx, cancel := context.WithTimeout(s.ctx, updateTimeout)
	defer cancel()

	report := s.jobs.UpdateEnergyDataJob(ctx, nil, time.Time{})
	s.logger.WithFields(logrus.Fields{
		"users":     report.Users,
		"succeeded": report.Succeeded,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"rows":      report.Rows,
	}).Info("scheduled energy update finished")
}

// verifyConsistency backfills the gap days of every configured user
func (s *Scheduler) verifyConsistency() {
	ctx, cancel := context.WithTimeout(s.ctx, verifyTimeout)
	defer cancel()

	var days, backfilled int
	for _, r := range s.jobs.VerifyConsistency(ctx, nil, false) {
		days += len(r.Days)
		backfilled += r.Backfilled
	}
	s.logger.WithFields(logrus.Fields{
		"gap_days":   days,
		"backfilled": backfilled,
	}).Info("scheduled consistency check finished")
}

// Stop the scheduler and wait for running jobs
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger routes cron's own logging through logrus.
type cronLogger struct {
	logger *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
