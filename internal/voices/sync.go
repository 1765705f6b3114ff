package voices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/gorm"
)

// Init loads the catalog at path and upserts every voice into the database.
// A voice that fails to sync is logged and skipped.
func Init(ctx context.Context, db *gorm.DB, path string) (*Registry, error) {
	registry, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded voice catalog", "voices", registry.Count(), "path", path)

	for _, e := range registry.List() {
		if err := syncVoice(ctx, db, e); err != nil {
			slog.Warn("Failed to sync voice profile", "voice_id", e.VoiceID, "error", err)
			continue
		}
	}
	return registry, nil
}

// syncVoice creates the profile for e, or updates it when the voice id exists.
func syncVoice(ctx context.Context, db *gorm.DB, e *Entry) error {
	db = db.WithContext(ctx)

	var profile models.VoiceProfile
	err := db.Where("voice_id = ?", e.VoiceID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.VoiceProfile{
			Name:        e.Name,
			VoiceID:     e.VoiceID,
			Description: e.Description,
			Category:    e.Category,
			IsPremium:   e.IsPremium,
			Gender:      e.Gender,
			AgeRange:    e.AgeRange,
			Accent:      e.Accent,
			SampleAudio: e.SampleAudio,
		}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to create voice profile: %w", err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to load voice profile: %w", err)
	}

	updates := map[string]interface{}{
		"name":         e.Name,
		"description":  e.Description,
		"category":     e.Category,
		"is_premium":   e.IsPremium,
		"gender":       e.Gender,
		"age_range":    e.AgeRange,
		"accent":       e.Accent,
		"sample_audio": e.SampleAudio,
	}
	if err := db.Model(&profile).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update voice profile: %w", err)
	}
	return nil
}
