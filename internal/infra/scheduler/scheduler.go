package scheduler

import (
	"context"
	"time"

	"membership_compliance_bot/internal/domain/compliance"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepRunner drives one pipeline stage over all watched groups.
type SweepRunner interface {
	RunScheduled(ctx context.Context, mode compliance.SweepMode, monthKey string)
}

// ExemptionJanitor garbage-collects expired exemption rows.
type ExemptionJanitor interface {
	CollectExpired(ctx context.Context) (int64, error)
}

// PipelineScheduler owns the three calendar triggers of the enforcement
// pipeline. All triggers evaluate in the configured reference timezone, since
// "day 15" and "end of month" are human-facing concepts.
type PipelineScheduler struct {
	cronEngine           *cron.Cron
	sweeps               SweepRunner
	janitor              ExemptionJanitor
	logger               *logrus.Entry
	loc                  *time.Location
	cronSpecMidMonth     string
	cronSpecFinalWarning string // runs daily, acts only 3 days before month end
	cronSpecMonthlySweep string
}

func NewPipelineScheduler(
	sweeps SweepRunner,
	janitor ExemptionJanitor,
	logger *logrus.Entry,
	loc *time.Location,
	cronSpecMidMonth string, // e.g. "0 12 15 * *"
	cronSpecFinalWarning string, // e.g. "0 12 * * *"
	cronSpecMonthlySweep string, // e.g. "0 12 1 * *"
) *PipelineScheduler {
	return &PipelineScheduler{
		cronEngine:           cron.New(cron.WithLocation(loc)),
		sweeps:               sweeps,
		janitor:              janitor,
		logger:               logger,
		loc:                  loc,
		cronSpecMidMonth:     cronSpecMidMonth,
		cronSpecFinalWarning: cronSpecFinalWarning,
		cronSpecMonthlySweep: cronSpecMonthlySweep,
	}
}

func (s *PipelineScheduler) Start() {
	s.logger.Info("Starting enforcement pipeline scheduler")

	// Mid-month reminder: day 15, current month key.
	_, err := s.cronEngine.AddFunc(s.cronSpecMidMonth, func() {
		now := time.Now().In(s.loc)
		monthKey := compliance.MonthKey(now)
		s.logger.WithField("month_key", monthKey).Info("Mid-month reminder trigger fired")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		s.sweeps.RunScheduled(ctx, compliance.ModeReminder, monthKey)
	})
	if err != nil {
		s.logger.WithError(err).Fatal("Could not add mid-month reminder cron job")
	}

	// Final warning: fires daily, no-op unless today is exactly 3 days before
	// the last calendar day of the month. Also the hook for opportunistic
	// exemption GC, which is never load-bearing for classification.
	_, err = s.cronEngine.AddFunc(s.cronSpecFinalWarning, func() {
		now := time.Now().In(s.loc)
		if n, err := s.janitor.CollectExpired(context.Background()); err != nil {
			s.logger.WithError(err).Warn("Expired exemption GC failed")
		} else if n > 0 {
			s.logger.WithField("deleted", n).Info("Collected expired exemptions")
		}

		if !IsFinalWarningDay(now) {
			s.logger.WithFields(logrus.Fields{
				"day":      now.Day(),
				"last_day": LastDayOfMonth(now),
			}).Debug("Not the final warning day, skipping")
			return
		}
		monthKey := compliance.MonthKey(now)
		s.logger.WithField("month_key", monthKey).Info("Final warning trigger acting")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		s.sweeps.RunScheduled(ctx, compliance.ModeFinalWarning, monthKey)
	})
	if err != nil {
		s.logger.WithError(err).Fatal("Could not add final warning cron job")
	}

	// Monthly removal: day 1, judged against the month that just ended.
	_, err = s.cronEngine.AddFunc(s.cronSpecMonthlySweep, func() {
		now := time.Now().In(s.loc)
		monthKey := compliance.PreviousMonthKey(now)
		s.logger.WithField("month_key", monthKey).Info("Monthly removal trigger fired")
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Minute)
		defer cancel()
		s.sweeps.RunScheduled(ctx, compliance.ModeRemoval, monthKey)
	})
	if err != nil {
		s.logger.WithError(err).Fatal("Could not add monthly removal cron job")
	}

	s.cronEngine.Start()
	s.logger.Info("Enforcement pipeline scheduler started with 3 jobs")
}

func (s *PipelineScheduler) Stop() {
	s.logger.Info("Stopping enforcement pipeline scheduler")
	ctx := s.cronEngine.Stop()
	<-ctx.Done() // wait for in-flight jobs
	s.logger.Info("Enforcement pipeline scheduler stopped")
}
