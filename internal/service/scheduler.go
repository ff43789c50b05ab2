package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps cron-based jobs.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(loc *time.Location) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
	}
}

// ScheduleInterval registers a periodic job every given duration.
func (s *Scheduler) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	// Convert to cron spec: every N seconds.
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
