package di

import (
	"fmt"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/reliability"
	"github.com/aristath/governor/internal/scheduler"
	"github.com/rs/zerolog"
)

// Maintenance schedules (seconds field first)
const (
	dailyMaintenanceSchedule  = "0 0 2 * * *"   // every day at 02:00
	weeklyMaintenanceSchedule = "0 0 3 * * SUN" // Sunday 03:00
)

// RegisterJobs creates the background jobs
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	jobCfg := scheduler.WeeklyCycleJobConfig{
		Runner:         container.CycleRunner,
		Source:         container.Inbox,
		RetentionWeeks: cfg.ArchiveRetentionWeeks,
		Log:            log,
	}
	// A typed nil would defeat the job's nil check
	if container.ArchiveService != nil {
		jobCfg.Archiver = container.ArchiveService
	}

	return &JobInstances{
		WeeklyCycle:       scheduler.NewWeeklyCycleJob(jobCfg),
		DailyMaintenance:  reliability.NewDailyMaintenanceJob(container.Databases(), cfg.DataDir, log),
		WeeklyMaintenance: reliability.NewWeeklyMaintenanceJob(container.Databases(), log),
	}, nil
}

// ScheduleJobs registers every job with the scheduler
func ScheduleJobs(s *scheduler.Scheduler, cfg *config.Config, jobs *JobInstances) error {
	if err := s.AddJob(cfg.WeeklySchedule, jobs.WeeklyCycle); err != nil {
		return fmt.Errorf("failed to schedule weekly cycle: %w", err)
	}
	if err := s.AddJob(dailyMaintenanceSchedule, jobs.DailyMaintenance); err != nil {
		return fmt.Errorf("failed to schedule daily maintenance: %w", err)
	}
	if err := s.AddJob(weeklyMaintenanceSchedule, jobs.WeeklyMaintenance); err != nil {
		return fmt.Errorf("failed to schedule weekly maintenance: %w", err)
	}
	return nil
}
