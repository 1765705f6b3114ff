// Package mood records self-reported moods and summarizes them.
package mood

import (
	"context"
	"fmt"
	"time"

	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/gorm"
)

// Record appends a mood entry for userID.
func Record(ctx context.Context, db *gorm.DB, userID uint, mood, notes string) (*models.MoodRecord, error) {
	if !models.ValidMood(mood) {
		return nil, fmt.Errorf("invalid mood %q", mood)
	}
	rec := models.MoodRecord{
		UserID:     userID,
		Mood:       mood,
		Notes:      notes,
		RecordedAt: time.Now(),
	}
	if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to record mood: %w", err)
	}
	return &rec, nil
}

// List returns the user's mood entries, newest first.
func List(ctx context.Context, db *gorm.DB, userID uint) ([]models.MoodRecord, error) {
	var recs []models.MoodRecord
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("recorded_at DESC").Order("id DESC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list moods: %w", err)
	}
	return recs, nil
}

// Stats counts the user's entries per mood. Every mood is present, zero or not.
func Stats(ctx context.Context, db *gorm.DB, userID uint) (map[string]int64, error) {
	var rows []struct {
		Mood  string
		Count int64
	}
	if err := db.WithContext(ctx).
		Model(&models.MoodRecord{}).
		Select("mood, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("mood").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count moods: %w", err)
	}

	stats := make(map[string]int64, len(models.Moods))
	for _, m := range models.Moods {
		stats[m] = 0
	}
	for _, r := range rows {
		stats[r.Mood] = r.Count
	}
	return stats, nil
}
