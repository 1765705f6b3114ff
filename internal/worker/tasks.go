package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskOutreachScan     = "outreach:scan"
	TaskOutreachSchedule = "outreach:schedule"
	TaskOutreachDispatch = "outreach:dispatch"
)

// ScanOffsetDays is how far out the periodic scan schedules comfort emails.
const ScanOffsetDays = 1

// schedulePayload is the body of an outreach:schedule task.
type schedulePayload struct {
	UserID    uint `json:"user_id"`
	DaysAhead int  `json:"days_ahead"`
}

// Client enqueues outreach tasks.
type Client struct {
	client *asynq.Client
}

// NewClient connects an enqueueing client to redisURL.
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// Close closes the Asynq client connection gracefully.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueSchedule queues email generation for one user. The task is unique
// per user for a day so overlapping scans cannot double-schedule.
func (c *Client) EnqueueSchedule(ctx context.Context, userID uint, daysAhead int) error {
	task, err := newScheduleTask(userID, daysAhead)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue schedule for user %d: %w", userID, err)
	}
	return nil
}

func newScheduleTask(userID uint, daysAhead int) (*asynq.Task, error) {
	payload, err := json.Marshal(schedulePayload{UserID: userID, DaysAhead: daysAhead})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskOutreachSchedule, payload, scheduleTaskOptions()...), nil
}

// scheduleTaskOptions gives the LLM call room. Vendor failures are never
// retried; the next scan picks the user up again.
func scheduleTaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.MaxRetry(0),
		asynq.Timeout(2 * time.Minute),
		asynq.Retention(24 * time.Hour),
		asynq.Unique(24 * time.Hour),
	}
}

func newScanTask() *asynq.Task {
	return asynq.NewTask(
		TaskOutreachScan,
		nil, // handler queries all users
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(time.Hour),
	)
}

func newDispatchTask() *asynq.Task {
	// Sends are not idempotent; a failed sweep waits for the next tick.
	return asynq.NewTask(
		TaskOutreachDispatch,
		nil,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(time.Hour),
		asynq.Unique(4*time.Minute),
	)
}
