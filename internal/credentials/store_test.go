package credentials

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "users.json"))
	require.NoError(t, err)
	return s
}

func TestOpenCreatesEmptyDocument(t *testing.T) {
	s := newTestStore(t)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"users": []}`, string(data))
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Register("mina", "mina@example.com", "pa55word", RegisterOptions{FirstName: "Mina"})
	require.NoError(t, err)
	assert.False(t, rec.IsActive)
	assert.Nil(t, rec.LastLogin)
	assert.Equal(t, DefaultPreferences(), rec.Preferences)
	assert.Len(t, rec.PasswordSalt, 32)
	assert.Equal(t, HashPassword("pa55word", rec.PasswordSalt), rec.PasswordHash)

	byName, err := s.Authenticate("mina", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byName.ID)
	require.NotNil(t, byName.LastLogin)

	byEmail, err := s.Authenticate("mina@example.com", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byEmail.ID)

	stored, err := s.FindByID(rec.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register("mina", "mina@example.com", "pa55word", RegisterOptions{})
	require.NoError(t, err)

	_, wrongPassword := s.Authenticate("mina", "pa55worD")
	_, unknown := s.Authenticate("nobody", "pa55word")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknown.Error())

	stored, err := s.FindByUsername("mina")
	require.NoError(t, err)
	assert.Nil(t, stored.LastLogin)
}

func TestCheckPasswordSensitiveToSalt(t *testing.T) {
	rec := Record{}
	rec.setPassword("secret")
	assert.True(t, rec.CheckPassword("secret"))

	salt := []byte(rec.PasswordSalt)
	salt[0] ^= 0x01
	rec.PasswordSalt = string(salt)
	assert.False(t, rec.CheckPassword("secret"))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register("mina", "mina@example.com", "pw", RegisterOptions{})
	require.NoError(t, err)

	_, err = s.Register("mina", "other@example.com", "pw", RegisterOptions{})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "username", dup.Field)
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.Register("other", "mina@example.com", "pw", RegisterOptions{})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)

	users, err := s.List()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegisterValidatesInput(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		field    string
	}{
		{"missing username", " ", "a@example.com", "pw", "username"},
		{"malformed email", "a", "not-an-email", "pw", "email"},
		{"empty password", "a", "a@example.com", "", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(tt.username, tt.email, tt.password, RegisterOptions{})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestVerificationTokenIsOneShot(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Register("mina", "mina@example.com", "pw", RegisterOptions{})
	require.NoError(t, err)

	token, err := s.IssueVerificationToken(rec.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, s.ConsumeVerification(rec.ID, "wrong"), ErrInvalidToken)
	stored, err := s.FindByID(rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationToken)
	assert.False(t, stored.IsActive)

	require.NoError(t, s.ConsumeVerification(rec.ID, token))
	assert.ErrorIs(t, s.ConsumeVerification(rec.ID, token), ErrInvalidToken)

	stored, err = s.FindByID(rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Nil(t, stored.VerificationToken)
}

func TestResetTokenIsOneShot(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Register("mina", "mina@example.com", "old-pw", RegisterOptions{Active: true})
	require.NoError(t, err)

	_, err = s.IssueResetToken("missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	grant, err := s.IssueResetToken("mina@example.com")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, grant.UserID)
	require.NoError(t, s.CheckResetToken(rec.ID, grant.Token))

	require.NoError(t, s.ConsumeReset(rec.ID, grant.Token, "new-pw"))
	assert.ErrorIs(t, s.ConsumeReset(rec.ID, grant.Token, "newer-pw"), ErrInvalidToken)
	assert.ErrorIs(t, s.CheckResetToken(rec.ID, grant.Token), ErrInvalidToken)

	stored, err := s.FindByID(rec.ID)
	require.NoError(t, err)
	assert.NotEqual(t, rec.PasswordSalt, stored.PasswordSalt)

	_, err = s.Authenticate("mina", "old-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate("mina", "new-pw")
	assert.NoError(t, err)
}

func TestUpdateFieldDottedPath(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Register("mina", "mina@example.com", "pw", RegisterOptions{})
	require.NoError(t, err)

	require.NoError(t, s.UpdateField(rec.ID, "preferences.preferred_voice", "calm_female"))
	require.NoError(t, s.UpdateField(rec.ID, "first_name", "Mina"))
	require.NoError(t, s.UpdateField(rec.ID, "preferences.email_notifications", false))

	stored, err := s.FindByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "calm_female", stored.Preferences.PreferredVoice)
	assert.Equal(t, "Mina", stored.FirstName)
	assert.False(t, stored.Preferences.EmailNotifications)
	assert.True(t, stored.Preferences.WeeklySummaryEnabled)
}

func TestUpdateFieldFailures(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Register("mina", "mina@example.com", "pw", RegisterOptions{})
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateField("missing", "first_name", "x"), ErrNotFound)
	assert.ErrorIs(t, s.UpdateField(rec.ID, "preferences.favourite_colour", "blue"), ErrUnknownField)
	assert.ErrorIs(t, s.UpdateField(rec.ID, "preferences.", "x"), ErrUnknownField)
	assert.ErrorIs(t, s.UpdateField(rec.ID, "is_active", "yes"), ErrUnknownField)
}

func TestFileFormatIsUnescapedUTF8(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register("민아", "mina@example.com", "pw", RegisterOptions{FirstName: "민아 <3"})
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "민아 <3"))

	var doc struct {
		Users []map[string]any `json:"users"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Users, 1)
	for _, key := range []string{"id", "username", "password_hash", "password_salt", "date_joined", "last_login", "verification_token", "reset_token", "preferences"} {
		assert.Contains(t, doc.Users[0], key)
	}
}

func TestConcurrentRegistrationsKeepEveryRecord(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "user" + string(rune('a'+i))
			_, err := s.Register(name, name+"@example.com", "pw", RegisterOptions{})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	users, err := s.List()
	require.NoError(t, err)
	assert.Len(t, users, 20)
}

func TestDuplicateErrorMatching(t *testing.T) {
	err := error(&DuplicateError{Field: "email"})
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestCreateSuperuserIsActiveStaff(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.CreateSuperuser("admin", "admin@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, rec.IsActive)
	assert.True(t, rec.IsStaff)
	assert.True(t, rec.IsSuperuser)
	assert.Nil(t, rec.VerificationToken)

	_, err = s.Authenticate("admin", "pw")
	require.NoError(t, err)

	_, err = s.CreateSuperuser("admin", "other@example.com", "pw")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestOpenReadsZonelessTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := `{"users": [{
		"id": "5b0e1c9e-2a64-4d3c-9d1e-3f1b8c2a7e10",
		"username": "mina",
		"email": "mina@example.com",
		"password_hash": "` + HashPassword("pa55word", "salt") + `",
		"password_salt": "salt",
		"first_name": "", "last_name": "",
		"is_active": true, "is_staff": false, "is_superuser": false,
		"date_joined": "2024-03-01T09:30:15.123456",
		"last_login": null,
		"verification_token": null,
		"token_created_at": "2024-03-01 09:30:16",
		"reset_token": null,
		"preferences": {"email_notifications": true, "daily_check_in_reminder": false,
			"weekly_summary_enabled": true, "preferred_voice": "default"}
	}]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	s, err := Open(path)
	require.NoError(t, err)

	rec, err := s.FindByUsername("mina")
	require.NoError(t, err)
	want := time.Date(2024, 3, 1, 9, 30, 15, 123456000, time.Local)
	assert.True(t, want.Equal(rec.DateJoined), rec.DateJoined)
	require.NotNil(t, rec.TokenCreatedAt)
	assert.Equal(t, 16, rec.TokenCreatedAt.Second())

	_, err = s.Authenticate("mina", "pa55word")
	require.NoError(t, err)

	// The rewrite stores zone-qualified timestamps.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"2024-03-01T09:30:15.123456"`)
}

func TestOpenRejectsGarbageTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":[{"id":"x","username":"a","date_joined":"yesterday"}]}`), 0o600))

	s, err := Open(path)
	if err == nil {
		_, err = s.List()
	}
	assert.ErrorContains(t, err, "date_joined")
}
