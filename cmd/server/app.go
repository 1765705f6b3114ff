package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mindfulchat/mindful-chat/internal/agent"
	"github.com/mindfulchat/mindful-chat/internal/config"
	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/crypto"
	"github.com/mindfulchat/mindful-chat/internal/database"
	"github.com/mindfulchat/mindful-chat/internal/logging"
	"github.com/mindfulchat/mindful-chat/internal/mailer"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/gorm"
)

// app holds what every subcommand needs: configuration, the database and the
// credential file.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	db    *gorm.DB
	store *credentials.Store
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	box, err := tokenBox(cfg)
	if err != nil {
		return nil, err
	}
	models.SetTokenBox(box)

	db, err := database.Init(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, cfg.DatabaseDriver); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	store, err := credentials.Open(cfg.CredentialFilePath)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	return &app{cfg: cfg, log: logger, db: db, store: store}, nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.log.Error("Failed to close database", "error", err)
	}
}

// tokenBox prefers ENCRYPTION_KEY and otherwise derives a key from the session secret.
func tokenBox(cfg *config.Config) (*crypto.Box, error) {
	if cfg.EncryptionKey != "" {
		return crypto.NewBox(cfg.EncryptionKey)
	}
	if cfg.IsProduction() {
		slog.Warn("ENCRYPTION_KEY not set, deriving OAuth token key from SESSION_SECRET")
	}
	return crypto.DeriveBox(cfg.SessionSecret)
}

func (a *app) mailer() (mailer.Sender, error) {
	return mailer.New(mailer.SMTPConfig{
		Host:       a.cfg.SMTPHost,
		Port:       a.cfg.SMTPPort,
		Username:   a.cfg.SMTPUsername,
		Password:   a.cfg.SMTPPassword,
		From:       a.cfg.DefaultFromEmail,
		Production: a.cfg.IsProduction(),
	}, a.log)
}

// completer returns the chat model. Without an API key every call fails,
// which the callers surface as their generic error.
func (a *app) completer() (*agent.OpenAI, agent.Completer) {
	llm, err := agent.NewOpenAI(agent.OpenAIConfig{
		APIKey:      a.cfg.OpenAIAPIKey,
		Model:       a.cfg.OpenAIModel,
		Temperature: a.cfg.OpenAITemperature,
	})
	if err != nil {
		a.log.Warn("Chat model disabled", "error", err)
		return nil, agent.CompleterFunc(func(context.Context, []agent.Turn) (string, error) {
			return "", fmt.Errorf("chat model not configured: %w", err)
		})
	}
	return llm, llm
}
