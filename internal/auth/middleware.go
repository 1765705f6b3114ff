package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/mindfulchat/mindful-chat/internal/respond"
)

// Session and context keys.
const (
	sessionUserID   = "user_id"
	sessionUsername = "username"
	ctxUserID       = "user_id"
	ctxUsername     = "username"
)

// RequireAuth rejects requests without a signed-in principal with a 401 JSON
// body and exposes the principal id to downstream handlers.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(sessionUserID).(uint)
		if !ok || userID == 0 {
			respond.Error(c, http.StatusUnauthorized, "authentication required")
			return
		}

		username, _ := session.Get(sessionUsername).(string)
		SetPrincipal(c, userID, username)
		c.Next()
	}
}

// SetPrincipal exposes a principal to downstream handlers.
func SetPrincipal(c *gin.Context, userID uint, username string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxUsername, username)
}

// UserID returns the principal id set by RequireAuth, or 0.
func UserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

// Username returns the principal's username set by RequireAuth.
func Username(c *gin.Context) string {
	return c.GetString(ctxUsername)
}

// startSession stores user in a fresh session.
func startSession(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserID, user.ID)
	session.Set(sessionUsername, user.Username)
	return session.Save()
}
