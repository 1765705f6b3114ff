// Package identity keeps the relational users table in step with the
// credential file. The file is the authority; a users row is a projection
// rebuilt on every successful authentication.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInactive is returned when the password matched but the account is not yet verified.
var ErrInactive = errors.New("account not activated")

// Authenticator is the subset of the credential store the bridge needs.
type Authenticator interface {
	Authenticate(identifier, password string) (*credentials.Record, error)
}

// mirroredColumns are overwritten on every sync. Preference columns are not:
// they are applied from the credential record only when the row is created.
var mirroredColumns = []string{
	"email",
	"first_name",
	"last_name",
	"is_active",
	"is_staff",
	"is_superuser",
	"credential_id",
	"last_login_at",
	"updated_at",
}

// Bridge authenticates against the credential store and upserts principals.
type Bridge struct {
	db    *gorm.DB
	store Authenticator
	mu    sync.Mutex
	now   func() time.Time
}

// NewBridge returns a bridge over db and store.
func NewBridge(db *gorm.DB, store Authenticator) *Bridge {
	return &Bridge{db: db, store: store, now: time.Now}
}

// Login authenticates identifier/password against the credential store and
// returns the synced principal. Wrong password and unknown identity both yield
// credentials.ErrInvalidCredentials. An inactive record yields ErrInactive
// without touching the users table.
func (b *Bridge) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	rec, err := b.store.Authenticate(identifier, password)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, ErrInactive
	}
	return b.Sync(ctx, rec)
}

// Sync upserts the principal for rec keyed by username and returns the stored
// row. Running it twice with the same record only moves timestamps.
func (b *Bridge) Sync(ctx context.Context, rec *credentials.Record) (*models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lastLogin := rec.LastLogin
	if lastLogin == nil {
		now := b.now()
		lastLogin = &now
	}

	prefs := rec.Preferences
	if prefs.PreferredVoice == "" {
		prefs.PreferredVoice = credentials.DefaultVoice
	}

	user := models.User{
		Username:             rec.Username,
		Email:                rec.Email,
		FirstName:            rec.FirstName,
		LastName:             rec.LastName,
		IsActive:             rec.IsActive,
		IsStaff:              rec.IsStaff,
		IsSuperuser:          rec.IsSuperuser,
		CredentialID:         rec.ID,
		LastLoginAt:          lastLogin,
		PreferredVoice:       prefs.PreferredVoice,
		EmailNotifications:   prefs.EmailNotifications,
		DailyCheckInReminder: prefs.DailyCheckInReminder,
		WeeklySummaryEnabled: prefs.WeeklySummaryEnabled,
		MoodTrackingEnabled:  true,
	}

	var stored models.User
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns(mirroredColumns),
		}).Create(&user).Error; err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}

		// Re-read: drivers differ on what an upsert reports back.
		return tx.Where("username = ?", rec.Username).First(&stored).Error
	})
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// MirrorActive copies the credential record's active flag onto an existing
// principal, if one exists. Used after email verification.
func (b *Bridge) MirrorActive(ctx context.Context, rec *credentials.Record) error {
	return b.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", rec.Username).
		Update("is_active", rec.IsActive).Error
}
