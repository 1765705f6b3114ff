package profile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/auth"
	"github.com/mindfulchat/mindful-chat/internal/respond"
)

// MeHandler returns the signed-in principal.
func MeHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Me(c.Request.Context(), auth.UserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UpdatePreferencesHandler applies a partial preferences document.
func UpdatePreferencesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			respond.BadRequest(c, "invalid request body")
			return
		}

		user, err := svc.UpdatePreferences(c.Request.Context(), auth.UserID(c), body)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type voiceSettingRequest struct {
	PreferredVoice string `form:"preferred_voice" json:"preferred_voice" binding:"required"`
}

// UpdateVoiceSettingHandler sets the preferred voice from a form or JSON body.
func UpdateVoiceSettingHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req voiceSettingRequest
		if err := c.ShouldBind(&req); err != nil {
			respond.Binding(c, err)
			return
		}

		user, err := svc.SetVoice(c.Request.Context(), auth.UserID(c), req.PreferredVoice)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"preferred_voice": user.PreferredVoice})
	}
}

func writeError(c *gin.Context, err error) {
	var serr *SchemaError
	switch {
	case errors.As(err, &serr):
		respond.Fields(c, serr.Fields)
	case errors.Is(err, ErrUnknownVoice):
		respond.Fields(c, map[string]string{"preferred_voice": "Unknown voice."})
	case errors.Is(err, ErrUserNotFound):
		respond.NotFound(c, err.Error())
	default:
		slog.Error("Profile update failed", "error", err)
		respond.Error(c, http.StatusInternalServerError, "failed to update profile")
	}
}
