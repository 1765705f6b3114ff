package models

import (
	"time"

	"github.com/mindfulchat/mindful-chat/internal/crypto"
	"gorm.io/gorm"
)

var tokenBox *crypto.Box

// SetTokenBox installs the cipher used to seal OAuth tokens. With no box
// installed tokens are stored as given (tests, or sign-in disabled).
func SetTokenBox(box *crypto.Box) {
	tokenBox = box
}

// AuthIdentity links a user to an external sign-in provider account.
type AuthIdentity struct {
	gorm.Model
	UserID         uint   `gorm:"not null;index"`
	User           User   `gorm:"constraint:OnDelete:CASCADE;"`
	Provider       string `gorm:"not null"`
	ProviderUserID string `gorm:"not null;uniqueIndex:idx_auth_identities_provider_user,where:deleted_at IS NULL"`
	AccessToken    string `gorm:"type:text"`
	RefreshToken   string `gorm:"type:text"`
	TokenExpiry    *time.Time
}

// BeforeSave seals both tokens. GCM output differs every call, so tokens are
// resealed on every save.
func (a *AuthIdentity) BeforeSave(tx *gorm.DB) error {
	if tokenBox == nil {
		return nil
	}
	var err error
	if a.AccessToken, err = tokenBox.Seal(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = tokenBox.Seal(a.RefreshToken); err != nil {
		return err
	}
	return nil
}

// AfterSave restores plaintext on the in-memory struct after writing.
func (a *AuthIdentity) AfterSave(tx *gorm.DB) error {
	return a.AfterFind(tx)
}

// AfterFind opens both tokens after loading.
func (a *AuthIdentity) AfterFind(tx *gorm.DB) error {
	if tokenBox == nil {
		return nil
	}
	var err error
	if a.AccessToken, err = tokenBox.Open(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = tokenBox.Open(a.RefreshToken); err != nil {
		return err
	}
	return nil
}
