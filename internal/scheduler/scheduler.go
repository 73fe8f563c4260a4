// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"finbot/internal/logger"
)

// Sweeper deactivates activation codes and chat links past their expiry.
type Sweeper interface {
	ExpireStale(now time.Time) (codes, links int64, err error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	now     func() time.Time
	log     *zap.SugaredLogger
}

// New registers the expiry sweep under spec, a standard five field cron
// expression or a descriptor such as "@every 1h". Schedules run in UTC.
func New(spec string, sweeper Sweeper) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		sweeper: sweeper,
		now:     time.Now,
		log:     logger.Named("scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infow("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for a running job to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs one expiry pass.
func (s *Scheduler) Sweep() {
	codes, links, err := s.sweeper.ExpireStale(s.now())
	if err != nil {
		s.log.Errorw("Expiry sweep failed", "error", err)
		return
	}
	if codes > 0 || links > 0 {
		s.log.Infow("Expired activation codes and chat links", "codes", codes, "links", links)
	}
}
