package mood

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/auth"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/mindfulchat/mindful-chat/internal/respond"
	"gorm.io/gorm"
)

var moodChoices = strings.Join(models.Moods, " ")

// recordView adds the display label to a stored record.
type recordView struct {
	models.MoodRecord
	MoodDisplay string `json:"mood_display"`
}

var displayNames = map[string]string{
	models.MoodVeryBad:  "Very Bad",
	models.MoodBad:      "Bad",
	models.MoodNeutral:  "Neutral",
	models.MoodGood:     "Good",
	models.MoodVeryGood: "Very Good",
}

func view(r models.MoodRecord) recordView {
	return recordView{MoodRecord: r, MoodDisplay: displayNames[r.Mood]}
}

type createRequest struct {
	Mood  string `json:"mood" binding:"required"`
	Notes string `json:"notes"`
}

// CreateHandler records a mood for the caller.
func CreateHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Binding(c, err)
			return
		}
		if !models.ValidMood(req.Mood) {
			respond.Fields(c, map[string]string{"mood": "Must be one of: " + moodChoices + "."})
			return
		}

		rec, err := Record(c.Request.Context(), db, auth.UserID(c), req.Mood, req.Notes)
		if err != nil {
			slog.Error("Failed to record mood", "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to record mood")
			return
		}
		c.JSON(http.StatusCreated, view(*rec))
	}
}

// ListHandler returns the caller's moods, newest first.
func ListHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := List(c.Request.Context(), db, auth.UserID(c))
		if err != nil {
			slog.Error("Failed to list moods", "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to list moods")
			return
		}
		out := make([]recordView, len(recs))
		for i, r := range recs {
			out[i] = view(r)
		}
		c.JSON(http.StatusOK, out)
	}
}

// StatsHandler returns the caller's count per mood.
func StatsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := Stats(c.Request.Context(), db, auth.UserID(c))
		if err != nil {
			slog.Error("Failed to count moods", "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to count moods")
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
