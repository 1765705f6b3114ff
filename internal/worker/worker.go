package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mindfulchat/mindful-chat/internal/config"
	"github.com/mindfulchat/mindful-chat/internal/outreach"
)

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, jobs *Jobs, client *Client, logger *slog.Logger) error {
	srv, mux, err := newServer(cfg, jobs, client, logger)
	if err != nil {
		return err
	}
	// Run blocks and handles its own signal interception
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, jobs *Jobs, client *Client, logger *slog.Logger) (stop func(), err error) {
	srv, mux, err := newServer(cfg, jobs, client, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, jobs *Jobs, client *Client, logger *slog.Logger) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// One queue; concurrency bounds parallel LLM calls
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	logger.Info("Worker starting", "concurrency", 5)
	return srv, newMux(jobs, client, logger), nil
}

func newMux(jobs *Jobs, client *Client, logger *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOutreachScan, handleScan(jobs, client.EnqueueSchedule))
	mux.HandleFunc(TaskOutreachSchedule, handleSchedule(logger, jobs))
	mux.HandleFunc(TaskOutreachDispatch, handleDispatch(jobs))
	return mux
}

// handleScan fans candidates out as individual schedule tasks so one slow LLM
// call does not hold up the rest.
func handleScan(jobs *Jobs, enqueue ScheduleFunc) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		_, err := jobs.Scan(ctx, enqueue)
		return err
	}
}

// handleSchedule generates and stores one user's comfort email.
func handleSchedule(logger *slog.Logger, jobs *Jobs) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload schedulePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.UserID == 0 {
			// Invalid payload - don't retry
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		// Generate, then store as pending
		logger.Info("Processing outreach:schedule task", "user_id", payload.UserID, "days_ahead", payload.DaysAhead)

		err := jobs.ScheduleNow(ctx, payload.UserID, payload.DaysAhead)
		if errors.Is(err, outreach.ErrNotFound) {
			logger.Error("User not found", "user_id", payload.UserID)
			return fmt.Errorf("user not found: %w", asynq.SkipRetry)
		}
		if err != nil {
			// Model or database failure: surface it once, never retry
			return fmt.Errorf("failed to schedule comfort email: %w: %w", err, asynq.SkipRetry)
		}

		logger.Info("Comfort email scheduled", "user_id", payload.UserID)
		return nil
	}
}

func handleDispatch(jobs *Jobs) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		_, err := jobs.Dispatch(ctx)
		return err
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		// Check if this is the final failure (task will move to dead letter queue)
		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
