// Package scheduler runs LeadPipe's periodic jobs, such as visit reminders, on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled task. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Opts holds scheduler settings.
type Opts struct {
	Location *time.Location
}

// Option configures a Scheduler.
type Option func(*Opts)

// WithLocation evaluates cron expressions in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) {
		if loc != nil {
			o.Location = loc
		}
	}
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates and starts a cron scheduler. Expressions use the 5-field form
// (min, hour, dom, month, dow) or descriptors such as @daily and @every 1h.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := Opts{Location: time.Local}
	for _, opt := range opts {
		opt(&cfg)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start()
	slog.Debug("Scheduler.NewScheduler: started", "location", cfg.Location.String())
	return &Scheduler{cron: c, ctx: ctx, cancel: cancel}
}

// AddJob schedules job under name using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(name, expr string, job Job) error {
	_, err := s.cron.AddFunc(expr, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			slog.Error("Scheduler.run: job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		slog.Debug("Scheduler.run: job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", expr, name, err)
	}
	slog.Info("Scheduler.AddJob: job scheduled", "job", name, "schedule", expr)
	return nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	slog.Debug("Scheduler.Stop: stopped")
}
