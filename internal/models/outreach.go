package models

import (
	"time"

	"gorm.io/datatypes"
)

// Scheduled email status constants
const (
	EmailStatusPending   = "pending"
	EmailStatusSent      = "sent"
	EmailStatusFailed    = "failed"
	EmailStatusCancelled = "cancelled"
)

// Agent task status constants
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
	TaskStatusCancelled  = "cancelled"
)

// Agent task types
const (
	TaskTypeComfortEmail = "comfort_email"
	TaskTypeMoodAnalysis = "mood_analysis"
)

// EmailTemplate is a reusable subject/body pair rendered with per-user variables.
type EmailTemplate struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Name         string         `gorm:"size:100;not null" json:"name"`
	TemplateType string         `gorm:"size:20;not null" json:"template_type"`
	Subject      string         `gorm:"size:200;not null" json:"subject"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	Variables    datatypes.JSON `gorm:"type:jsonb" json:"variables"`
	Conditions   datatypes.JSON `gorm:"type:jsonb" json:"conditions"`
	IsActive     bool           `gorm:"not null" json:"is_active"`
}

// ScheduledEmail is an outreach message waiting for (or past) dispatch.
// Either TemplateID or inline Subject/Content supplies the message.
type ScheduledEmail struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UserID       uint           `gorm:"not null;index" json:"-"`
	User         User           `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	TemplateID   *uint          `gorm:"index" json:"template,omitempty"`
	Template     *EmailTemplate `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
	Subject      string         `gorm:"size:200;not null;default:''" json:"subject"`
	Content      string         `gorm:"type:text;not null;default:''" json:"content"`
	ScheduledAt  time.Time      `gorm:"not null;index" json:"scheduled_at"`
	Status       string         `gorm:"size:10;not null;default:'pending';index" json:"status"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	ErrorMessage string         `gorm:"column:error_message;type:text;not null;default:''" json:"errors,omitempty"`
}

// AgentTask records one background agent job and its JSON result.
type AgentTask struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UserID       uint           `gorm:"not null;index" json:"-"`
	User         User           `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	TaskType     string         `gorm:"size:30;not null" json:"task_type"`
	Parameters   datatypes.JSON `gorm:"type:jsonb" json:"parameters"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Status       string         `gorm:"size:15;not null;default:'pending';index" json:"status"`
	Result       datatypes.JSON `gorm:"type:jsonb" json:"result"`
	ErrorMessage string         `gorm:"column:error_message;type:text;not null;default:''" json:"errors,omitempty"`
}
