package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dev account credentials created by SeedDevData.
const (
	DevUsername = "dev"
	DevEmail    = "dev@mindfulchat.local"
	DevPassword = "dev-password"
)

var defaultTemplates = []models.EmailTemplate{
	{
		Name:         "Gentle check-in",
		TemplateType: "comfort",
		Subject:      "Thinking of you, {{.UserName}}",
		Content: "Hi {{.UserName}},\n\nIt seems the last few days have been heavy. " +
			"You don't have to carry everything alone. If you'd like to talk, we're here any time.\n\n" +
			"If you are in crisis, please call 1393 (suicide prevention) or 1577-0199 (mental health crisis line).\n\n" +
			"Warmly,\nMindful Chat",
		Variables: datatypes.JSON([]byte(`{"UserName":"display name"}`)),
		IsActive:  true,
	},
	{
		Name:         "Keep it going",
		TemplateType: "motivation",
		Subject:      "You're doing great, {{.UserName}}",
		Content: "Hi {{.UserName}},\n\nWe noticed things have been looking up lately. " +
			"Keep taking care of yourself, and drop by whenever you want to share how it's going.\n\n" +
			"Mindful Chat",
		Variables: datatypes.JSON([]byte(`{"UserName":"display name"}`)),
		IsActive:  true,
	},
}

// SeedDevData creates a development account in the credential file and the
// default email templates. Idempotent: existing rows are left alone.
func SeedDevData(db *gorm.DB, store *credentials.Store) error {
	if _, err := store.FindByUsername(DevUsername); errors.Is(err, credentials.ErrNotFound) {
		if _, err := store.Register(DevUsername, DevEmail, DevPassword, credentials.RegisterOptions{
			FirstName: "Dev",
			Active:    true,
		}); err != nil {
			return fmt.Errorf("failed to seed dev account: %w", err)
		}
		slog.Info("Seeded dev account", "username", DevUsername)
	} else if err != nil {
		return fmt.Errorf("failed to look up dev account: %w", err)
	}

	for _, tmpl := range defaultTemplates {
		result := db.Where("name = ?", tmpl.Name).FirstOrCreate(&tmpl)
		if result.Error != nil {
			return fmt.Errorf("failed to seed email template %q: %w", tmpl.Name, result.Error)
		}
		if result.RowsAffected > 0 {
			slog.Info("Seeded email template", "name", tmpl.Name)
		}
	}

	return nil
}
