package voices

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/mindfulchat/mindful-chat/internal/respond"
	"gorm.io/gorm"
)

// ListHandler returns every voice profile ordered by name.
func ListHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var profiles []models.VoiceProfile
		if err := db.WithContext(c.Request.Context()).Order("name ASC").Order("id ASC").Find(&profiles).Error; err != nil {
			slog.Error("Failed to list voice profiles", "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to list voice profiles")
			return
		}
		c.JSON(http.StatusOK, profiles)
	}
}

// GetHandler returns one voice profile by its numeric id.
func GetHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := respond.ParamID(c, "id")
		if !ok {
			return
		}

		var profile models.VoiceProfile
		err := db.WithContext(c.Request.Context()).First(&profile, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respond.NotFound(c, "voice profile not found")
			return
		}
		if err != nil {
			slog.Error("Failed to load voice profile", "id", id, "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to load voice profile")
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}
