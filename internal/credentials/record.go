// Package credentials implements the file-backed credential store: a single JSON
// document of user records that is the authority for passwords and one-shot tokens.
package credentials

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultVoice is the voice profile assigned when none was chosen.
const DefaultVoice = "default"

// Preferences are the per-user notification and voice settings.
type Preferences struct {
	EmailNotifications   bool   `json:"email_notifications"`
	DailyCheckInReminder bool   `json:"daily_check_in_reminder"`
	WeeklySummaryEnabled bool   `json:"weekly_summary_enabled"`
	PreferredVoice       string `json:"preferred_voice"`
}

// DefaultPreferences returns the preferences given to newly registered records.
func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications:   true,
		DailyCheckInReminder: false,
		WeeklySummaryEnabled: true,
		PreferredVoice:       DefaultVoice,
	}
}

// Record is one user entry of the credential document.
type Record struct {
	ID                  string      `json:"id"`
	Username            string      `json:"username"`
	Email               string      `json:"email"`
	PasswordHash        string      `json:"password_hash"`
	PasswordSalt        string      `json:"password_salt"`
	FirstName           string      `json:"first_name"`
	LastName            string      `json:"last_name"`
	IsActive            bool        `json:"is_active"`
	IsStaff             bool        `json:"is_staff"`
	IsSuperuser         bool        `json:"is_superuser"`
	DateJoined          time.Time   `json:"date_joined"`
	LastLogin           *time.Time  `json:"last_login"`
	VerificationToken   *string     `json:"verification_token"`
	TokenCreatedAt      *time.Time  `json:"token_created_at,omitempty"`
	ResetToken          *string     `json:"reset_token"`
	ResetTokenCreatedAt *time.Time  `json:"reset_token_created_at,omitempty"`
	Preferences         Preferences `json:"preferences"`
}

// DisplayName prefers the first name and falls back to the username.
func (r *Record) DisplayName() string {
	if r.FirstName != "" {
		return r.FirstName
	}
	return r.Username
}

// CheckPassword recomputes the salted digest and compares it in constant time.
func (r *Record) CheckPassword(password string) bool {
	computed := HashPassword(password, r.PasswordSalt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(r.PasswordHash)) == 1
}

func (r *Record) setPassword(password string) {
	r.PasswordSalt = NewToken()
	r.PasswordHash = HashPassword(password, r.PasswordSalt)
}

// HashPassword returns hex(SHA-256(password || salt)).
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// NewToken returns a random 32 character hex token used for salts and one-shot links.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewID returns a canonical UUID string for a new record.
func NewID() string {
	return uuid.NewString()
}

// Credential files written by earlier deployments carry zone-less ISO
// timestamps, read as local time.
var (
	legacyTimeLayouts = []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	timestampFields   = []string{"date_joined", "last_login", "token_created_at", "reset_token_created_at"}
)

// normalizeTimestamps rewrites zone-less timestamps in a credential document
// as RFC 3339 so it decodes into Record. Documents without any are returned
// unchanged.
func normalizeTimestamps(data []byte) ([]byte, error) {
	var doc struct {
		Users []map[string]json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	changed := false
	for _, user := range doc.Users {
		for _, key := range timestampFields {
			var value string
			if raw, ok := user[key]; !ok || json.Unmarshal(raw, &value) != nil || value == "" {
				continue
			}
			if _, err := time.Parse(time.RFC3339Nano, value); err == nil {
				continue
			}
			t, err := parseLegacyTime(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			encoded, err := json.Marshal(t.Format(time.RFC3339Nano))
			if err != nil {
				return nil, err
			}
			user[key] = encoded
			changed = true
		}
	}

	if !changed {
		return data, nil
	}
	return json.Marshal(doc)
}

func parseLegacyTime(value string) (time.Time, error) {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
