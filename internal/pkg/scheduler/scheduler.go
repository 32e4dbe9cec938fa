// Package scheduler runs the periodic billing sweep on a cron schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/subscription"
)

const DefaultBillingSpec = "0 4 * * *"

// Biller is the part of the subscription service the scheduler drives.
type Biller interface {
	RunBilling(ctx context.Context, now time.Time) (*subscription.RunReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	biller  Biller
	spec    string
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	entryID  cron.EntryID
	started  bool
	stopOnce sync.Once
}

// New builds a scheduler for the BILLING_CRON spec. Overlapping runs are
// skipped.
func New(biller Biller) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		biller:  biller,
		spec:    env.GetEnv("BILLING_CRON", DefaultBillingSpec),
		timeout: 30 * time.Minute,
		now:     time.Now,
	}
}

// Start registers the billing job and starts the cron loop. It stops when
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	id, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return err
	}
	s.entryID = id
	s.started = true
	s.cron.Start()
	log.Infof("[Scheduler] Billing sweep scheduled at %q", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce runs one sweep with a timeout and logs its report.
func (s *Scheduler) RunOnce(ctx context.Context) *subscription.RunReport {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.biller.RunBilling(runCtx, s.now())
	if err != nil {
		log.Errorf("[Scheduler] Billing sweep failed: %v", err)
		return report
	}
	if report.Locked {
		return report
	}
	log.Infof("[Scheduler] Billing sweep: due=%d charged=%d failed=%d", report.Due, report.Charged, report.Failed)
	return report
}

// Next is the time of the next scheduled sweep, zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Stop waits for a running sweep to finish. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		log.Info("[Scheduler] Stopped")
	})
}
