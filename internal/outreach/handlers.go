package outreach

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/auth"
	"github.com/mindfulchat/mindful-chat/internal/respond"
)

// notCancellableMessage is shown when the email already left the pending state.
const notCancellableMessage = "이미 처리된 이메일은 취소할 수 없습니다."

// ListTasksHandler returns the caller's agent tasks.
func ListTasksHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := svc.ListTasks(c.Request.Context(), auth.UserID(c))
		if err != nil {
			slog.Error("Failed to list tasks", "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to list tasks")
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

// RequestComfortEmailHandler schedules a comfort email for immediate dispatch.
func RequestComfortEmailHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, email, err := svc.RequestComfortEmail(c.Request.Context(), auth.UserID(c))
		if err != nil {
			slog.Error("Comfort email request failed", "user_id", auth.UserID(c), "error", err)
			respond.Internal(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"task_id":  task.ID,
			"email_id": email.ID,
			"status":   "scheduled",
		})
	}
}

// AnalyzeMoodHandler returns a fresh analysis of the caller's last two weeks.
func AnalyzeMoodHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, analysis, err := svc.AnalyzeMood(c.Request.Context(), auth.UserID(c))
		if err != nil {
			slog.Error("Mood analysis failed", "user_id", auth.UserID(c), "error", err)
			respond.Internal(c)
			return
		}
		c.JSON(http.StatusOK, analysis)
	}
}

// ComfortEmailPreviewHandler shows the analysis and the email the agent would
// write right now. Nothing is scheduled.
func ComfortEmailPreviewHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		analysis, email, err := svc.Preview(c.Request.Context(), auth.UserID(c))
		if err != nil {
			slog.Error("Comfort email preview failed", "user_id", auth.UserID(c), "error", err)
			respond.Internal(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"analysis": analysis, "email": email})
	}
}

type createEmailRequest struct {
	Template    *uint     `json:"template" binding:"omitempty,min=1"`
	Subject     string    `json:"subject" binding:"required_without=Template,max=200"`
	Content     string    `json:"content" binding:"required_without=Template"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required,gt"`
}

// CreateEmailHandler schedules an email from a template or an inline
// subject and body.
func CreateEmailHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Binding(c, err)
			return
		}

		email, err := svc.CreateEmail(c.Request.Context(), auth.UserID(c), Draft{
			TemplateID:  req.Template,
			Subject:     req.Subject,
			Content:     req.Content,
			ScheduledAt: req.ScheduledAt,
		})
		var ferr *FieldError
		switch {
		case errors.As(err, &ferr):
			respond.Fields(c, map[string]string{ferr.Field: ferr.Message})
		case err != nil:
			slog.Error("Failed to schedule email", "user_id", auth.UserID(c), "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to schedule email")
		default:
			c.JSON(http.StatusCreated, email)
		}
	}
}

// ListEmailsHandler returns the caller's scheduled emails.
func ListEmailsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		emails, err := svc.ListEmails(c.Request.Context(), auth.UserID(c))
		if err != nil {
			slog.Error("Failed to list scheduled emails", "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to list scheduled emails")
			return
		}
		c.JSON(http.StatusOK, emails)
	}
}

// CancelEmailHandler cancels one of the caller's pending emails.
func CancelEmailHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := respond.ParamID(c, "id")
		if !ok {
			return
		}

		_, err := svc.Cancel(c.Request.Context(), auth.UserID(c), id)
		switch {
		case errors.Is(err, ErrNotFound):
			respond.NotFound(c, ErrNotFound.Error())
		case errors.Is(err, ErrNotCancellable):
			respond.BadRequest(c, notCancellableMessage)
		case err != nil:
			slog.Error("Failed to cancel email", "email_id", id, "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to cancel email")
		default:
			c.JSON(http.StatusOK, gin.H{"status": "email cancelled"})
		}
	}
}
