package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/notify"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the
// duration until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// Scheduler runs reconciliation passes on a cron schedule.
type Scheduler struct {
	db        *gorm.DB
	laborRate decimal.Decimal
	notifier  notify.Notifier
	cronExpr  string
	announce  bool
}

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	LaborRate decimal.Decimal
	Notifier  notify.Notifier // defaults to notify.Log
	Cron      string          // 5-field cron expression
	// NotifyAnomalies sends one event per anomaly found. Clean passes
	// are only logged.
	NotifyAnomalies bool
}

// NewScheduler creates a Scheduler over the given database handle.
func NewScheduler(db *gorm.DB, opts SchedulerOpts) *Scheduler {
	n := opts.Notifier
	if n == nil {
		n = notify.Log{}
	}
	return &Scheduler{
		db:        db,
		laborRate: opts.LaborRate,
		notifier:  n,
		cronExpr:  opts.Cron,
		announce:  opts.NotifyAnomalies,
	}
}

// Run blocks until ctx is canceled, firing a reconciliation pass at
// each cron tick. An unparseable expression returns immediately.
func (s *Scheduler) Run(ctx context.Context) {
	d := nextCronDuration(s.cronExpr)
	if d <= 0 {
		log.Printf("reconcile: bad cron expression %q, scheduler disabled", s.cronExpr)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.RunOnce(ctx)
			if d := nextCronDuration(s.cronExpr); d > 0 {
				timer.Reset(d)
			}
		}
	}
}

// RunOnce executes a single pass and announces what it found.
func (s *Scheduler) RunOnce(ctx context.Context) *Report {
	report, err := Run(s.db, s.laborRate)
	if err != nil {
		log.Printf("reconcile: pass failed: %v", err)
		return nil
	}
	if report.Empty() {
		log.Printf("reconcile: pass clean")
		return report
	}
	for _, summary := range report.Summaries() {
		log.Printf("reconcile: %s", summary)
		if s.announce {
			s.notifier.Notify(ctx, notify.Event{
				Kind:    notify.KindReconcileAnomaly,
				Summary: summary,
			})
		}
	}
	return report
}
