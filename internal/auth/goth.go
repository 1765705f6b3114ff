package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/mindfulchat/mindful-chat/internal/config"
	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/mindfulchat/mindful-chat/internal/respond"
	"gorm.io/gorm"
)

const providerGoogle = "google"

// ErrNoActiveAccount is returned when a Google email has no active credential record.
var ErrNoActiveAccount = errors.New("no active account for this email")

// InitProviders configures Google sign-in. It reports whether the provider
// was registered.
func InitProviders(cfg *config.Config, log *slog.Logger) bool {
	// Gothic keeps its own gorilla/sessions store for OAuth state, separate
	// from the gin session. The default Secure=true breaks plain-HTTP localhost.
	gothStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	gothStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = gothStore

	if cfg.GoogleClientID == "" {
		log.Warn("GOOGLE_CLIENT_ID not set, Google sign-in disabled")
		return false
	}

	goth.UseProviders(google.New(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleCallbackURL,
		"email",
		"profile",
	))
	log.Info("Goth providers initialized", "providers", providerGoogle)
	return true
}

func withProvider(r *http.Request) {
	// gothic reads the provider from the query string
	q := r.URL.Query()
	q.Set("provider", providerGoogle)
	r.URL.RawQuery = q.Encode()
}

// GoogleLogin starts the OAuth flow.
func (h *Handlers) GoogleLogin(c *gin.Context) {
	withProvider(c.Request)
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// GoogleCallback completes the OAuth flow. Sign-in only succeeds for an email
// that belongs to an active credential record; the principal is synced from
// that record and the provider tokens are kept on an AuthIdentity.
func (h *Handlers) GoogleCallback(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		withProvider(c.Request)

		gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
		if err != nil {
			h.log.Error("OAuth callback failed", "error", err)
			respond.Error(c, http.StatusUnauthorized, "auth_failed")
			return
		}

		rec, err := RecordIdentity(h.store, gothUser.Email)
		if err != nil {
			h.log.Info("Google sign-in refused", "email", gothUser.Email, "error", err)
			respond.Error(c, http.StatusForbidden, ErrNoActiveAccount.Error())
			return
		}

		user, err := h.bridge.Sync(c.Request.Context(), rec)
		if err != nil {
			h.log.Error("Failed to sync principal", "username", rec.Username, "error", err)
			respond.Error(c, http.StatusInternalServerError, "login failed")
			return
		}

		if err := saveIdentity(c.Request.Context(), db, user, gothUser); err != nil {
			h.log.Error("Failed to store auth identity", "user_id", user.ID, "error", err)
			respond.Error(c, http.StatusInternalServerError, "login failed")
			return
		}

		if err := startSession(c, user); err != nil {
			h.log.Error("Session save error", "user_id", user.ID, "error", err)
			respond.Error(c, http.StatusInternalServerError, "login failed")
			return
		}

		h.log.Info("User authenticated", "user_id", user.ID, "provider", providerGoogle)
		c.Redirect(http.StatusFound, "/")
	}
}

// RecordIdentity looks up a credential record by its Google email and fails
// with ErrNoActiveAccount unless the record is active.
func RecordIdentity(store *credentials.Store, email string) (*credentials.Record, error) {
	rec, err := store.FindByEmail(email)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, ErrNoActiveAccount
		}
		return nil, err
	}
	if !rec.IsActive {
		return nil, ErrNoActiveAccount
	}
	return rec, nil
}

// saveIdentity upserts the provider account for user. Tokens are sealed by
// the model hooks.
func saveIdentity(ctx context.Context, db *gorm.DB, user *models.User, gu goth.User) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ident models.AuthIdentity
		err := tx.Where("provider = ? AND provider_user_id = ?", gu.Provider, gu.UserID).First(&ident).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load auth identity: %w", err)
		}

		ident.UserID = user.ID
		ident.Provider = gu.Provider
		ident.ProviderUserID = gu.UserID
		ident.AccessToken = gu.AccessToken
		if gu.RefreshToken != "" {
			ident.RefreshToken = gu.RefreshToken
		}
		if !gu.ExpiresAt.IsZero() {
			expiry := gu.ExpiresAt
			ident.TokenExpiry = &expiry
		}

		if err := tx.Save(&ident).Error; err != nil {
			return fmt.Errorf("failed to save auth identity: %w", err)
		}
		return nil
	})
}
