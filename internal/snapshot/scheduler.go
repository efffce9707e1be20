// Package snapshot runs the prediction pass on a fixed schedule so the
// history store keeps filling even when nobody is calling the API.
package snapshot

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule takes one snapshot at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Func is one prediction pass, bound to its source tag by the caller.
type Func func(ctx context.Context) error

// Scheduler fires a prediction run on a cron schedule. Overlapping runs are
// skipped rather than queued: a snapshot that arrives while the previous one
// is still fetching carries no new information.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	run      Func
}

func New(schedule string, run Func) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		schedule: schedule,
		run:      run,
	}
}

// Start registers the job and runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.run(ctx); err != nil {
			log.Printf("snapshot: scheduled run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("add snapshot job: %w", err)
	}

	log.Printf("snapshot: scheduler started, schedule %q", s.schedule)
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Print("snapshot: scheduler stopped")
	return nil
}
