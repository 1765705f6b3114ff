// Package profile updates a principal's preferences and mirrors each change
// into the credential file.
package profile

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/gorm"
)

//go:embed preferences.schema.json
var preferencesSchema []byte

var (
	// ErrUnknownVoice is returned for voice ids outside the catalog.
	ErrUnknownVoice = errors.New("unknown voice id")
	// ErrUserNotFound is returned when the principal row is missing.
	ErrUserNotFound = errors.New("user not found")
)

// SchemaError lists the fields of a preferences body that failed validation.
type SchemaError struct {
	Fields map[string]string
}

func (e *SchemaError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k+": "+e.Fields[k])
	}
	sort.Strings(keys)
	return "preferences validation failed: " + strings.Join(keys, "; ")
}

// FieldUpdater writes one field of a credential record.
type FieldUpdater interface {
	UpdateField(id, path string, value any) error
}

// VoiceCatalog reports known voice ids.
type VoiceCatalog interface {
	Has(voiceID string) bool
}

// credentialPaths maps principal columns to credential record paths. Columns
// absent here live only on the principal.
var credentialPaths = map[string]string{
	"first_name":              "first_name",
	"last_name":               "last_name",
	"preferred_voice":         "preferences.preferred_voice",
	"email_notifications":     "preferences.email_notifications",
	"daily_check_in_reminder": "preferences.daily_check_in_reminder",
	"weekly_summary_enabled":  "preferences.weekly_summary_enabled",
}

// Service applies preference changes.
type Service struct {
	db     *gorm.DB
	store  FieldUpdater
	voices VoiceCatalog
	schema *jsonschema.Schema
}

// NewService compiles the preferences schema and returns a service.
func NewService(db *gorm.DB, store FieldUpdater, voices VoiceCatalog) (*Service, error) {
	schema, err := jsonschema.NewCompiler().Compile(preferencesSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile preferences schema: %w", err)
	}
	return &Service{db: db, store: store, voices: voices, schema: schema}, nil
}

// Validate checks a decoded JSON body against the preferences schema.
func (s *Service) Validate(body map[string]any) error {
	result := s.schema.Validate(body)
	if result.IsValid() {
		return nil
	}
	fields := make(map[string]string, len(result.Errors))
	for field, evalErr := range result.Errors {
		fields[field] = evalErr.Error()
	}
	return &SchemaError{Fields: fields}
}

// Me returns the principal row.
func (s *Service) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// UpdatePreferences validates body, writes it to the principal and copies
// each mirrored field to the credential record.
func (s *Service) UpdatePreferences(ctx context.Context, userID uint, body map[string]any) (*models.User, error) {
	if err := s.Validate(body); err != nil {
		return nil, err
	}
	if voice, ok := body["preferred_voice"].(string); ok && !s.voices.Has(voice) {
		return nil, ErrUnknownVoice
	}
	return s.apply(ctx, userID, body)
}

// SetVoice changes the preferred voice.
func (s *Service) SetVoice(ctx context.Context, userID uint, voiceID string) (*models.User, error) {
	if !s.voices.Has(voiceID) {
		return nil, ErrUnknownVoice
	}
	return s.apply(ctx, userID, map[string]any{"preferred_voice": voiceID})
}

func (s *Service) apply(ctx context.Context, userID uint, changes map[string]any) (*models.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	if user.CredentialID != "" {
		keys := make([]string, 0, len(changes))
		for k := range changes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, column := range keys {
			path, ok := credentialPaths[column]
			if !ok {
				continue
			}
			if err := s.store.UpdateField(user.CredentialID, path, changes[column]); err != nil && !errors.Is(err, credentials.ErrNotFound) {
				return nil, fmt.Errorf("failed to mirror %s to credential record: %w", column, err)
			}
		}
	}

	return s.Me(ctx, userID)
}
