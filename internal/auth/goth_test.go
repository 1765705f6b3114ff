package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/markbates/goth"
	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/database/dbtest"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIdentityRequiresActiveRecord(t *testing.T) {
	store, err := credentials.Open(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	_, err = store.Register("inactive", "inactive@example.com", "pw", credentials.RegisterOptions{})
	require.NoError(t, err)
	active, err := store.Register("active", "active@example.com", "pw", credentials.RegisterOptions{Active: true})
	require.NoError(t, err)

	_, err = RecordIdentity(store, "ghost@example.com")
	assert.ErrorIs(t, err, ErrNoActiveAccount)
	_, err = RecordIdentity(store, "inactive@example.com")
	assert.ErrorIs(t, err, ErrNoActiveAccount)

	rec, err := RecordIdentity(store, "active@example.com")
	require.NoError(t, err)
	assert.Equal(t, active.ID, rec.ID)
}

func TestSaveIdentityUpserts(t *testing.T) {
	db := dbtest.New(t)
	user := dbtest.CreateUser(t, db, "mina")
	ctx := context.Background()

	gu := goth.User{
		Provider:     providerGoogle,
		UserID:       "google-123",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, saveIdentity(ctx, db, user, gu))

	gu.AccessToken = "access-2"
	gu.RefreshToken = ""
	require.NoError(t, saveIdentity(ctx, db, user, gu))

	var idents []models.AuthIdentity
	require.NoError(t, db.Find(&idents).Error)
	require.Len(t, idents, 1)
	assert.Equal(t, user.ID, idents[0].UserID)
	assert.Equal(t, "access-2", idents[0].AccessToken)
	assert.Equal(t, "refresh-1", idents[0].RefreshToken)
	assert.NotNil(t, idents[0].TokenExpiry)
}
