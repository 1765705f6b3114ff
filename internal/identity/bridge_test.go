package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/database/dbtest"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Bridge, *credentials.Store) {
	t.Helper()
	db := dbtest.New(t)
	store, err := credentials.Open(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	return NewBridge(db, store), store
}

func TestLoginCreatesPrincipalWithPreferences(t *testing.T) {
	b, store := setup(t)
	prefs := credentials.Preferences{EmailNotifications: false, WeeklySummaryEnabled: true, PreferredVoice: "calm_male"}
	_, err := store.Register("mina", "mina@example.com", "pw", credentials.RegisterOptions{
		FirstName:   "Mina",
		Active:      true,
		Preferences: &prefs,
	})
	require.NoError(t, err)

	user, err := b.Login(context.Background(), "mina@example.com", "pw")
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "mina", user.Username)
	assert.Equal(t, "Mina", user.FirstName)
	assert.True(t, user.IsActive)
	assert.Equal(t, "calm_male", user.PreferredVoice)
	assert.False(t, user.EmailNotifications)
	assert.True(t, user.MoodTrackingEnabled)
	require.NotNil(t, user.LastLoginAt)
}

func TestLoginRejectsBadPasswordAndInactive(t *testing.T) {
	b, store := setup(t)
	_, err := store.Register("mina", "mina@example.com", "pw", credentials.RegisterOptions{})
	require.NoError(t, err)

	_, err = b.Login(context.Background(), "mina", "nope")
	assert.ErrorIs(t, err, credentials.ErrInvalidCredentials)

	_, err = b.Login(context.Background(), "mina", "pw")
	assert.ErrorIs(t, err, ErrInactive)

	var count int64
	require.NoError(t, b.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSyncIsIdempotentAndMirrorsOnlyIdentityFields(t *testing.T) {
	b, _ := setup(t)
	ctx := context.Background()
	login := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := &credentials.Record{
		ID:          "cred-1",
		Username:    "mina",
		Email:       "mina@example.com",
		IsActive:    true,
		LastLogin:   &login,
		Preferences: credentials.DefaultPreferences(),
	}

	first, err := b.Sync(ctx, rec)
	require.NoError(t, err)
	second, err := b.Sync(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, b.db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// a local preference change survives later syncs
	require.NoError(t, b.db.Model(&models.User{}).Where("id = ?", first.ID).Update("preferred_voice", "soothing_female").Error)

	rec.Email = "new@example.com"
	rec.IsStaff = true
	rec.Preferences.PreferredVoice = "cheerful_male"
	third, err := b.Sync(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, "new@example.com", third.Email)
	assert.True(t, third.IsStaff)
	assert.Equal(t, "soothing_female", third.PreferredVoice)
	assert.Equal(t, "cred-1", third.CredentialID)
}

func TestMirrorActive(t *testing.T) {
	b, _ := setup(t)
	ctx := context.Background()
	rec := &credentials.Record{ID: "c", Username: "mina", Email: "m@example.com", Preferences: credentials.DefaultPreferences()}
	user, err := b.Sync(ctx, rec)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	rec.IsActive = true
	require.NoError(t, b.MirrorActive(ctx, rec))

	var stored models.User
	require.NoError(t, b.db.First(&stored, user.ID).Error)
	assert.True(t, stored.IsActive)
}
