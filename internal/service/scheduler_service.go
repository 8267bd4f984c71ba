package service

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"family-tasks/internal/config"
)

// SchedulerService runs the periodic digest jobs.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	return &SchedulerService{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
	}
}

// ScheduleDigests registers job every interval and once a day at dailyAt
// (HH:MM). A zero interval or empty dailyAt skips that trigger. It returns
// the number of registered triggers.
func (s *SchedulerService) ScheduleDigests(interval time.Duration, dailyAt string, job func()) (int, error) {
	n := 0
	if interval > 0 {
		if _, err := s.ScheduleInterval(interval, job); err != nil {
			return n, fmt.Errorf("schedule digest interval: %w", err)
		}
		log.Printf("[info] digest every %s", interval)
		n++
	}
	if dailyAt != "" {
		if _, err := s.ScheduleDaily(dailyAt, job); err != nil {
			return n, fmt.Errorf("schedule daily digest: %w", err)
		}
		log.Printf("[info] digest daily at %s", dailyAt)
		n++
	}
	return n, nil
}

// ScheduleDaily registers a job at the given HH:MM wall-clock time.
func (s *SchedulerService) ScheduleDaily(clock string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(clock)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a job every interval, rounded down to whole seconds.
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", interval)
	}
	seconds := max(int(interval.Seconds()), 1)
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), job)
}

// Entries reports how many jobs are registered.
func (s *SchedulerService) Entries() int {
	return len(s.cron.Entries())
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// buildDailySpec turns HH:MM into a seconds-first cron spec.
func buildDailySpec(clock string) (string, error) {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
