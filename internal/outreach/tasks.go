package outreach

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/datatypes"
)

// RequestComfortEmail records a comfort_email task and schedules an email for
// immediate dispatch. The task ends completed with the email id, or failed.
func (s *Service) RequestComfortEmail(ctx context.Context, userID uint) (*models.AgentTask, *models.ScheduledEmail, error) {
	task, err := s.startTask(ctx, userID, models.TaskTypeComfortEmail, models.TaskStatusPending, map[string]int{"days_ahead": 0})
	if err != nil {
		return nil, nil, err
	}

	email, err := s.Schedule(ctx, userID, 0)
	if err != nil {
		s.failTask(ctx, task, err)
		return task, nil, err
	}

	if err := s.completeTask(ctx, task, map[string]uint{"email_id": email.ID}); err != nil {
		return task, email, err
	}
	return task, email, nil
}

// AnalyzeMood records a mood_analysis task holding the analysis as its result.
func (s *Service) AnalyzeMood(ctx context.Context, userID uint) (*models.AgentTask, *Analysis, error) {
	task, err := s.startTask(ctx, userID, models.TaskTypeMoodAnalysis, models.TaskStatusInProgress, nil)
	if err != nil {
		return nil, nil, err
	}

	analysis, err := s.Analyze(ctx, userID)
	if err != nil {
		s.failTask(ctx, task, err)
		return task, nil, err
	}

	if err := s.completeTask(ctx, task, analysis); err != nil {
		return task, analysis, err
	}
	return task, analysis, nil
}

// ListTasks returns the user's agent tasks, newest first.
func (s *Service) ListTasks(ctx context.Context, userID uint) ([]models.AgentTask, error) {
	var tasks []models.AgentTask
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *Service) startTask(ctx context.Context, userID uint, taskType, status string, params any) (*models.AgentTask, error) {
	now := s.now()
	task := models.AgentTask{
		UserID:      userID,
		TaskType:    taskType,
		ScheduledAt: &now,
		Status:      status,
	}
	if status == models.TaskStatusInProgress {
		task.StartedAt = &now
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal task parameters: %w", err)
		}
		task.Parameters = datatypes.JSON(raw)
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s task: %w", taskType, err)
	}
	return &task, nil
}

func (s *Service) completeTask(ctx context.Context, task *models.AgentTask, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal task result: %w", err)
	}
	now := s.now()
	if err := s.db.WithContext(ctx).Model(task).Updates(map[string]interface{}{
		"status":       models.TaskStatusCompleted,
		"result":       datatypes.JSON(raw),
		"completed_at": now,
	}).Error; err != nil {
		return fmt.Errorf("failed to complete task %d: %w", task.ID, err)
	}
	task.Status = models.TaskStatusCompleted
	task.Result = datatypes.JSON(raw)
	task.CompletedAt = &now
	return nil
}

// failTask is best effort: the caller already has an error to report.
func (s *Service) failTask(ctx context.Context, task *models.AgentTask, cause error) {
	if err := s.db.WithContext(ctx).Model(task).Updates(map[string]interface{}{
		"status":        models.TaskStatusFailed,
		"error_message": cause.Error(),
	}).Error; err != nil {
		s.log.Error("Failed to mark task failed", "task_id", task.ID, "error", err)
	}
	task.Status = models.TaskStatusFailed
	task.ErrorMessage = cause.Error()
	s.log.Error("Agent task failed", "task_id", task.ID, "task_type", task.TaskType, "error", cause)
}
