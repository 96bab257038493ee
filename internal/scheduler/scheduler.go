package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vytor/phonicsmastery/internal/logger"
)

// Resyncer retries writes that previously exhausted their attempts.
type Resyncer interface {
	Resync() int
}

// Scheduler runs the periodic unsynced-write sweep.
type Scheduler struct {
	scheduler *gocron.Scheduler
	resyncer  Resyncer
	interval  time.Duration
	log       *logger.Logger
}

func New(resyncer Resyncer, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		resyncer:  resyncer,
		interval:  interval,
		log:       logger.Default().WithPrefix("scheduler"),
	}
}

// Start registers the sweep and runs it in the background. The first sweep
// waits one full interval.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("resync interval must be positive, got %v", s.interval)
	}
	if _, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.sweep); err != nil {
		return fmt.Errorf("schedule resync: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("resync sweep every %v", s.interval)
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweep() {
	if n := s.resyncer.Resync(); n > 0 {
		s.log.Debug("sweep resubmitted %d writes", n)
	}
}
