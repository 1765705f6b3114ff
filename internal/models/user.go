package models

import (
	"time"
)

// User is the relational projection of a credential record (the Principal).
// Password authority lives in the credential file; this row only mirrors
// identity fields and owns the per-user preferences used by the app.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"index;not null;default:''" json:"email"`
	FirstName    string     `gorm:"not null;default:''" json:"first_name"`
	LastName     string     `gorm:"not null;default:''" json:"last_name"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	IsStaff      bool       `gorm:"not null" json:"is_staff"`
	IsSuperuser  bool       `gorm:"not null" json:"is_superuser"`
	CredentialID string     `gorm:"index;not null;default:''" json:"-"`
	LastLoginAt  *time.Time `json:"last_login,omitempty"`

	// Preferences. Bools carry no column default so gorm always writes them.
	PreferredVoice       string `gorm:"not null;default:'default'" json:"preferred_voice"`
	EmailNotifications   bool   `gorm:"not null" json:"email_notifications"`
	DailyCheckInReminder bool   `gorm:"not null" json:"daily_check_in_reminder"`
	WeeklySummaryEnabled bool   `gorm:"not null" json:"weekly_summary_enabled"`
	MoodTrackingEnabled  bool   `gorm:"not null" json:"mood_tracking_enabled"`

	// Associations
	AuthIdentities []AuthIdentity `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Conversations  []Conversation `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	MoodRecords    []MoodRecord   `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// DisplayName prefers the first name and falls back to the username.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// Mood ordinals, worst to best.
const (
	MoodVeryBad  = "very_bad"
	MoodBad      = "bad"
	MoodNeutral  = "neutral"
	MoodGood     = "good"
	MoodVeryGood = "very_good"
)

// Moods lists every valid mood value, worst to best.
var Moods = []string{MoodVeryBad, MoodBad, MoodNeutral, MoodGood, MoodVeryGood}

// ValidMood reports whether mood is one of the five ordinals.
func ValidMood(mood string) bool {
	for _, m := range Moods {
		if m == mood {
			return true
		}
	}
	return false
}

// MoodRecord is an append-only self-reported mood entry.
type MoodRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"-"`
	User       User      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Mood       string    `gorm:"not null;size:10" json:"mood"`
	Notes      string    `gorm:"type:text;not null;default:''" json:"notes"`
	RecordedAt time.Time `gorm:"not null;index" json:"recorded_at"`
}
