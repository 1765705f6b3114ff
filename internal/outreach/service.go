package outreach

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/mindfulchat/mindful-chat/internal/agent"
	"github.com/mindfulchat/mindful-chat/internal/mailer"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/gorm"
)

// RecentSendCooldown keeps a user from getting a second email too soon.
const RecentSendCooldown = 7 * 24 * time.Hour

var (
	// ErrNotFound is returned for emails or users the caller cannot see.
	ErrNotFound = errors.New("not found")
	// ErrNotCancellable is returned when cancelling a non-pending email.
	ErrNotCancellable = errors.New("email already processed")
)

// Counts tallies one dispatch sweep.
type Counts struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Service owns scheduled emails and agent task records.
type Service struct {
	db   *gorm.DB
	llm  agent.Completer
	mail mailer.Sender
	log  *slog.Logger
	now  func() time.Time
}

// NewService wires the analyzer to its model and mail transport.
func NewService(db *gorm.DB, llm agent.Completer, mail mailer.Sender, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, llm: llm, mail: mail, log: log, now: time.Now}
}

// Schedule writes a comfort email for userID and queues it daysAhead days out.
func (s *Service) Schedule(ctx context.Context, userID uint, daysAhead int) (*models.ScheduledEmail, error) {
	if daysAhead < 0 {
		return nil, fmt.Errorf("days ahead must not be negative, got %d", daysAhead)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	analysis, err := s.Analyze(ctx, userID)
	if err != nil {
		return nil, err
	}
	email, err := s.ComposeEmail(ctx, &user, analysis)
	if err != nil {
		return nil, err
	}

	scheduled := models.ScheduledEmail{
		UserID:      userID,
		Subject:     email.Subject,
		Content:     email.Body,
		ScheduledAt: s.now().Add(time.Duration(daysAhead) * 24 * time.Hour),
		Status:      models.EmailStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&scheduled).Error; err != nil {
		return nil, fmt.Errorf("failed to schedule email: %w", err)
	}

	s.log.Info("Scheduled comfort email",
		"user_id", userID,
		"email_id", scheduled.ID,
		"scheduled_at", scheduled.ScheduledAt,
		"band", BandFor(analysis.MoodScore),
	)
	return &scheduled, nil
}

// SweepDue sends every pending email whose time has come. A failed send marks
// that email failed and the sweep moves on.
func (s *Service) SweepDue(ctx context.Context) (Counts, error) {
	var due []models.ScheduledEmail
	if err := s.db.WithContext(ctx).
		Preload("User").Preload("Template").
		Where("status = ? AND scheduled_at <= ?", models.EmailStatusPending, s.now()).
		Order("scheduled_at ASC").Order("id ASC").
		Find(&due).Error; err != nil {
		return Counts{}, fmt.Errorf("failed to load due emails: %w", err)
	}

	counts := Counts{Total: len(due)}
	for i := range due {
		email := &due[i]
		if err := s.deliver(ctx, email); err != nil {
			s.log.Error("Failed to send scheduled email", "email_id", email.ID, "user_id", email.UserID, "error", err)
			if uerr := s.finish(ctx, email, models.EmailStatusFailed, err.Error()); uerr != nil {
				return counts, uerr
			}
			counts.Failed++
			continue
		}
		if err := s.finish(ctx, email, models.EmailStatusSent, ""); err != nil {
			return counts, err
		}
		counts.Sent++
	}

	if counts.Total > 0 {
		s.log.Info("Email sweep finished", "total", counts.Total, "sent", counts.Sent, "failed", counts.Failed)
	}
	return counts, nil
}

func (s *Service) deliver(ctx context.Context, email *models.ScheduledEmail) error {
	if email.User.Email == "" {
		return errors.New("user has no email address")
	}
	subject, body, err := render(email)
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, mailer.Message{To: email.User.Email, Subject: subject, Body: body})
}

func (s *Service) finish(ctx context.Context, email *models.ScheduledEmail, status, errMsg string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
	}
	if status == models.EmailStatusSent {
		updates["sent_at"] = s.now()
	}
	if err := s.db.WithContext(ctx).Model(email).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update email %d: %w", email.ID, err)
	}
	return nil
}

// templateData is what EmailTemplate subjects and bodies may reference.
type templateData struct {
	UserName  string
	Username  string
	FirstName string
	LastName  string
}

// render prefers inline subject and content, falling back to the template.
func render(email *models.ScheduledEmail) (string, string, error) {
	if email.Subject != "" || email.Content != "" || email.Template == nil {
		if email.Subject == "" && email.Content == "" {
			return "", "", errors.New("email has neither content nor template")
		}
		return email.Subject, email.Content, nil
	}

	data := templateData{
		UserName:  email.User.DisplayName(),
		Username:  email.User.Username,
		FirstName: email.User.FirstName,
		LastName:  email.User.LastName,
	}
	subject, err := execute("subject", email.Template.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := execute("content", email.Template.Content, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func execute(name, text string, data templateData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// FindCandidates returns active, reachable users without a pending email or
// a recent send whose analysis says they need comfort.
func (s *Service) FindCandidates(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND email_notifications = ? AND email <> ''", true, true).
		Where("NOT EXISTS (SELECT 1 FROM scheduled_emails se WHERE se.user_id = users.id AND se.status = ?)",
			models.EmailStatusPending).
		Where("NOT EXISTS (SELECT 1 FROM scheduled_emails se WHERE se.user_id = users.id AND se.status = ? AND se.sent_at >= ?)",
			models.EmailStatusSent, s.now().Add(-RecentSendCooldown)).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load outreach users: %w", err)
	}

	candidates := make([]models.User, 0, len(users))
	for _, u := range users {
		a, err := s.Analyze(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if a.NeedsComfort {
			candidates = append(candidates, u)
		}
	}
	return candidates, nil
}

// ListEmails returns the user's scheduled emails, latest schedule first.
func (s *Service) ListEmails(ctx context.Context, userID uint) ([]models.ScheduledEmail, error) {
	var emails []models.ScheduledEmail
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("scheduled_at DESC").Order("id DESC").
		Find(&emails).Error; err != nil {
		return nil, fmt.Errorf("failed to list scheduled emails: %w", err)
	}
	return emails, nil
}

// Cancel moves one of the user's pending emails to cancelled.
func (s *Service) Cancel(ctx context.Context, userID, emailID uint) (*models.ScheduledEmail, error) {
	var email models.ScheduledEmail
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", emailID, userID).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load email: %w", err)
	}

	res := s.db.WithContext(ctx).
		Model(&models.ScheduledEmail{}).
		Where("id = ? AND status = ?", email.ID, models.EmailStatusPending).
		Update("status", models.EmailStatusCancelled)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel email: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotCancellable
	}
	email.Status = models.EmailStatusCancelled
	return &email, nil
}
