package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/hibiken/asynq"
	"github.com/mindfulchat/mindful-chat/internal/config"
)

// scheduleLocation parses the configured timezone, falling back to UTC.
func scheduleLocation(cfg *config.Config, logger *slog.Logger) *time.Location {
	location, err := time.LoadLocation(cfg.ScheduleTimezone)
	if err != nil {
		logger.Warn("Invalid timezone, using UTC", "timezone", cfg.ScheduleTimezone, "error", err)
		return time.UTC
	}
	return location
}

// StartScheduler creates and starts an Asynq Scheduler for periodic tasks.
// Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: scheduleLocation(cfg, logger),
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	scanID, err := scheduler.Register(cfg.OutreachScanSchedule, newScanTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register outreach scan schedule: %w", err)
	}
	dispatchID, err := scheduler.Register(cfg.EmailDispatchSchedule, newDispatchTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register email dispatch schedule: %w", err)
	}

	// Start scheduler (non-blocking)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info(
		"Scheduler started",
		"scan_schedule", cfg.OutreachScanSchedule,
		"dispatch_schedule", cfg.EmailDispatchSchedule,
		"timezone", cfg.ScheduleTimezone,
		"scan_entry_id", scanID,
		"dispatch_entry_id", dispatchID,
	)

	return func() { scheduler.Shutdown() }, nil
}

// StartLocal runs the same periodic jobs in-process with gocron. Used when no
// Redis is configured; scans schedule emails inline.
func StartLocal(cfg *config.Config, jobs *Jobs, logger *slog.Logger) (stop func(), err error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(scheduleLocation(cfg, logger)),
		gocron.WithLogger(&gocronLogger{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s.Start()

	ctx, cancel := context.WithCancel(context.Background())
	entries := []struct {
		name string
		cron string
		run  func()
	}{
		{TaskOutreachScan, cfg.OutreachScanSchedule, func() {
			if _, err := jobs.Scan(ctx, jobs.ScheduleNow); err != nil {
				logger.Error("Outreach scan failed", "error", err)
			}
		}},
		{TaskOutreachDispatch, cfg.EmailDispatchSchedule, func() {
			if _, err := jobs.Dispatch(ctx); err != nil {
				logger.Error("Email dispatch failed", "error", err)
			}
		}},
	}

	for _, e := range entries {
		job, err := s.NewJob(
			gocron.CronJob(e.cron, false),
			gocron.NewTask(e.run),
			gocron.WithName(e.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = s.Shutdown()
			return nil, fmt.Errorf("failed to schedule job %s: %w", e.name, err)
		}
		attrs := []any{"job_name", e.name, "cron", e.cron}
		if next, err := job.NextRun(); err == nil {
			attrs = append(attrs, "next_run", next.Format(time.RFC3339))
		}
		logger.Info("Job scheduled", attrs...)
	}

	logger.Info("In-process scheduler started", "timezone", cfg.ScheduleTimezone)

	return func() {
		cancel()
		if err := s.Shutdown(); err != nil {
			logger.Error("Failed to shut down scheduler", "error", err)
		}
	}, nil
}
