package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/gorm"
)

// MaxScheduleAhead bounds how far out a user may schedule an email.
const MaxScheduleAhead = 30 * 24 * time.Hour

const (
	pastScheduleMessage    = "예약 시간은 현재 시간 이후여야 합니다."
	farScheduleMessage     = "예약은 최대 30일 이내로만 가능합니다."
	unknownTemplateMessage = "사용할 수 없는 템플릿입니다."
	missingContentMessage  = "템플릿 또는 제목과 내용을 입력해주세요."
)

// FieldError rejects one field of a user request.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Draft is an email a user schedules by hand, either from a template or
// with an inline subject and body.
type Draft struct {
	TemplateID  *uint
	Subject     string
	Content     string
	ScheduledAt time.Time
}

// CreateEmail validates d and queues it as a pending email for userID.
// Template emails are rendered at dispatch.
func (s *Service) CreateEmail(ctx context.Context, userID uint, d Draft) (*models.ScheduledEmail, error) {
	now := s.now()
	switch {
	case d.ScheduledAt.Before(now):
		return nil, &FieldError{Field: "scheduled_at", Message: pastScheduleMessage}
	case d.ScheduledAt.After(now.Add(MaxScheduleAhead)):
		return nil, &FieldError{Field: "scheduled_at", Message: farScheduleMessage}
	}

	if d.TemplateID == nil && (d.Subject == "" || d.Content == "") {
		return nil, &FieldError{Field: "template", Message: missingContentMessage}
	}
	if d.TemplateID != nil {
		var tmpl models.EmailTemplate
		err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", *d.TemplateID, true).First(&tmpl).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &FieldError{Field: "template", Message: unknownTemplateMessage}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load email template: %w", err)
		}
	}

	email := models.ScheduledEmail{
		UserID:      userID,
		TemplateID:  d.TemplateID,
		Subject:     d.Subject,
		Content:     d.Content,
		ScheduledAt: d.ScheduledAt,
		Status:      models.EmailStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&email).Error; err != nil {
		return nil, fmt.Errorf("failed to schedule email: %w", err)
	}

	s.log.Info("User scheduled email", "user_id", userID, "email_id", email.ID, "template", email.TemplateID != nil)
	return &email, nil
}

// Preview analyses userID and writes the email that would be sent, without
// scheduling anything.
func (s *Service) Preview(ctx context.Context, userID uint) (*Analysis, Email, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Email{}, ErrNotFound
		}
		return nil, Email{}, fmt.Errorf("failed to load user: %w", err)
	}

	analysis, err := s.Analyze(ctx, userID)
	if err != nil {
		return nil, Email{}, err
	}
	email, err := s.ComposeEmail(ctx, &user, analysis)
	if err != nil {
		return nil, Email{}, err
	}
	return analysis, email, nil
}
