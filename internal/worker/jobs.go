package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mindfulchat/mindful-chat/internal/outreach"
)

// Jobs holds the periodic outreach work shared by the asynq worker and the
// in-process scheduler.
type Jobs struct {
	svc *outreach.Service
	log *slog.Logger
}

// NewJobs wraps svc.
func NewJobs(svc *outreach.Service, log *slog.Logger) *Jobs {
	if log == nil {
		log = slog.Default()
	}
	return &Jobs{svc: svc, log: log}
}

// ScheduleFunc schedules an email for one user.
type ScheduleFunc func(ctx context.Context, userID uint, daysAhead int) error

// Scan finds users who need comfort and hands each to schedule. A failure
// for one user is logged and the scan moves on.
func (j *Jobs) Scan(ctx context.Context, schedule ScheduleFunc) (int, error) {
	users, err := j.svc.FindCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to find outreach candidates: %w", err)
	}

	scheduled := 0
	for _, u := range users {
		if err := schedule(ctx, u.ID, ScanOffsetDays); err != nil {
			j.log.Error("Failed to schedule comfort email", "user_id", u.ID, "error", err)
			continue
		}
		scheduled++
	}

	j.log.Info("Outreach scan finished", "candidates", len(users), "scheduled", scheduled)
	return scheduled, nil
}

// ScheduleNow generates and stores the email in the calling goroutine.
func (j *Jobs) ScheduleNow(ctx context.Context, userID uint, daysAhead int) error {
	_, err := j.svc.Schedule(ctx, userID, daysAhead)
	return err
}

// Dispatch sends every due email.
func (j *Jobs) Dispatch(ctx context.Context) (outreach.Counts, error) {
	return j.svc.SweepDue(ctx)
}
