package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/config"
	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/identity"
	"github.com/mindfulchat/mindful-chat/internal/mailer"
	"github.com/mindfulchat/mindful-chat/internal/respond"
)

const (
	verificationSubject = "마음챙김 대화 - 이메일 주소 확인"
	resetSubject        = "마음챙김 대화 - 비밀번호 재설정"

	// resetRequestedMessage is returned whether or not the email exists.
	resetRequestedMessage = "If an account exists for that email, a password reset link has been sent."
	invalidLink           = "invalid_link"
)

// Handlers serves the account endpoints backed by the credential file.
type Handlers struct {
	store  *credentials.Store
	bridge *identity.Bridge
	mail   mailer.Sender
	cfg    *config.Config
	log    *slog.Logger
}

// NewHandlers wires the account handlers.
func NewHandlers(store *credentials.Store, bridge *identity.Bridge, mail mailer.Sender, cfg *config.Config, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{store: store, bridge: bridge, mail: mail, cfg: cfg, log: log}
}

type registerRequest struct {
	Username           string `json:"username" binding:"required"`
	Email              string `json:"email" binding:"required,email"`
	Password1          string `json:"password1" binding:"required"`
	Password2          string `json:"password2" binding:"required,eqfield=Password1"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	EmailNotifications *bool  `json:"email_notifications"`
}

// Register creates an inactive credential record and mails a verification link.
// When delivery fails outside production the account is activated directly.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Binding(c, err)
		return
	}

	opts := credentials.RegisterOptions{FirstName: req.FirstName, LastName: req.LastName}
	if req.EmailNotifications != nil {
		prefs := credentials.DefaultPreferences()
		prefs.EmailNotifications = *req.EmailNotifications
		opts.Preferences = &prefs
	}

	rec, err := h.store.Register(req.Username, req.Email, req.Password1, opts)
	if err != nil {
		h.registrationError(c, err)
		return
	}

	token, err := h.store.IssueVerificationToken(rec.ID)
	if err != nil {
		h.log.Error("Failed to issue verification token", "user_id", rec.ID, "error", err)
		respond.Error(c, http.StatusInternalServerError, "failed to complete registration")
		return
	}

	active := false
	body := fmt.Sprintf("%s님, 안녕하세요.\n\n아래 링크를 눌러 이메일 주소를 확인해주세요.\n\n%s\n",
		rec.DisplayName(), verificationLink(h.cfg.SiteURL, rec.ID, token))
	if err := h.mail.Send(c.Request.Context(), mailer.Message{To: rec.Email, Subject: verificationSubject, Body: body}); err != nil {
		h.log.Error("Failed to send verification mail", "user_id", rec.ID, "error", err)
		if !h.cfg.IsProduction() {
			if err := h.store.ConsumeVerification(rec.ID, token); err != nil {
				h.log.Error("Failed to activate account", "user_id", rec.ID, "error", err)
			} else {
				active = true
				h.log.Warn("Account activated without verification (development)", "user_id", rec.ID)
			}
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"username":  rec.Username,
		"email":     rec.Email,
		"is_active": active,
	})
}

func (h *Handlers) registrationError(c *gin.Context, err error) {
	var dup *credentials.DuplicateError
	var verr *credentials.ValidationError
	switch {
	case errors.As(err, &dup):
		respond.Fields(c, map[string]string{dup.Field: fmt.Sprintf("A user with that %s already exists.", dup.Field)})
	case errors.As(err, &verr):
		respond.Fields(c, map[string]string{verr.Field: verr.Message})
	default:
		h.log.Error("Registration failed", "error", err)
		respond.Error(c, http.StatusInternalServerError, "failed to complete registration")
	}
}

type loginRequest struct {
	// Username accepts either a username or an email address.
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates against the credential file, syncs the principal and
// starts a session.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Binding(c, err)
		return
	}

	user, err := h.bridge.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, credentials.ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid username or password")
		return
	case errors.Is(err, identity.ErrInactive):
		respond.Error(c, http.StatusForbidden, "account not activated, check your email")
		return
	case err != nil:
		h.log.Error("Login failed", "error", err)
		respond.Error(c, http.StatusInternalServerError, "login failed")
		return
	}

	if err := startSession(c, user); err != nil {
		h.log.Error("Session save error", "user_id", user.ID, "error", err)
		respond.Error(c, http.StatusInternalServerError, "login failed")
		return
	}

	h.log.Info("User authenticated", "user_id", user.ID, "username", user.Username)
	c.JSON(http.StatusOK, user)
}

// Logout clears the session.
func (h *Handlers) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		h.log.Error("Session clear error", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// VerifyEmail consumes a verification link and activates the account.
func (h *Handlers) VerifyEmail(c *gin.Context) {
	id, err := DecodeUID(c.Param("uid"))
	if err != nil {
		respond.BadRequest(c, invalidLink)
		return
	}
	if err := h.store.ConsumeVerification(id, c.Param("token")); err != nil {
		respond.BadRequest(c, invalidLink)
		return
	}

	rec, err := h.store.FindByID(id)
	if err == nil {
		err = h.bridge.MirrorActive(c.Request.Context(), rec)
	}
	if err != nil {
		// the principal picks the flag up on its next login
		h.log.Warn("Failed to mirror activation", "user_id", id, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PasswordReset mails a reset link when the email is registered. The response
// is the same either way.
func (h *Handlers) PasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Binding(c, err)
		return
	}

	grant, err := h.store.IssueResetToken(req.Email)
	switch {
	case errors.Is(err, credentials.ErrNotFound):
	case err != nil:
		h.log.Error("Failed to issue reset token", "error", err)
	default:
		h.sendReset(c.Request.Context(), req.Email, grant)
	}

	c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
}

func (h *Handlers) sendReset(ctx context.Context, email string, grant *credentials.ResetGrant) {
	body := fmt.Sprintf("아래 링크에서 새 비밀번호를 설정해주세요.\n\n%s\n\n요청하지 않으셨다면 이 메일을 무시하셔도 됩니다.\n",
		resetLink(h.cfg.SiteURL, grant.UserID, grant.Token))
	if err := h.mail.Send(ctx, mailer.Message{To: email, Subject: resetSubject, Body: body}); err != nil {
		h.log.Error("Failed to send password reset mail", "user_id", grant.UserID, "error", err)
	}
}

type resetConfirmRequest struct {
	NewPassword1 string `json:"new_password1" binding:"required"`
	NewPassword2 string `json:"new_password2" binding:"required,eqfield=NewPassword1"`
}

// PasswordResetConfirm sets a new password through a reset link. The link is
// checked before the body so an invalid link never reports field errors.
func (h *Handlers) PasswordResetConfirm(c *gin.Context) {
	id, err := DecodeUID(c.Param("uid"))
	if err != nil {
		respond.BadRequest(c, invalidLink)
		return
	}
	token := c.Param("token")
	if err := h.store.CheckResetToken(id, token); err != nil {
		respond.BadRequest(c, invalidLink)
		return
	}

	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Binding(c, err)
		return
	}

	if err := h.store.ConsumeReset(id, token, req.NewPassword1); err != nil {
		if errors.Is(err, credentials.ErrInvalidToken) {
			respond.BadRequest(c, invalidLink)
			return
		}
		h.log.Error("Password reset failed", "user_id", id, "error", err)
		respond.Error(c, http.StatusInternalServerError, "password reset failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
