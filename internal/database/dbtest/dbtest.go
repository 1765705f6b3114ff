// Package dbtest provides throwaway sqlite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/mindfulchat/mindful-chat/internal/database"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New opens a migrated sqlite database in a temp dir, closed when the test ends.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Init(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.Migrate(db, database.DriverSQLite))
	return db
}

// CreateUser inserts an active principal with default preferences.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:             username,
		Email:                username + "@example.com",
		IsActive:             true,
		PreferredVoice:       "default",
		EmailNotifications:   true,
		WeeklySummaryEnabled: true,
		MoodTrackingEnabled:  true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
