package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

const devSessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"

// Config holds application configuration loaded from environment variables
type Config struct {
	Env     string `envconfig:"ENV" default:"development"`
	Port    string `envconfig:"PORT" default:"8080"`
	SiteURL string `envconfig:"SITE_URL" default:"http://localhost:8080"`

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"mindful.db"`
	RedisURL       string `envconfig:"REDIS_URL"`

	SessionSecret string `envconfig:"SESSION_SECRET"`
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `envconfig:"GOOGLE_CALLBACK_URL" default:"http://localhost:8080/auth/google/callback"`

	// LLM
	OpenAIAPIKey      string  `envconfig:"OPENAI_API_KEY"`
	OpenAIModel       string  `envconfig:"OPENAI_MODEL" default:"gpt-4-turbo-preview"`
	OpenAITemperature float32 `envconfig:"OPENAI_TEMPERATURE" default:"0.7"`

	// Naver Clova voice vendor
	NaverClientID     string `envconfig:"NAVER_CLIENT_ID"`
	NaverClientSecret string `envconfig:"NAVER_CLIENT_SECRET"`
	ClovaBaseURL      string `envconfig:"CLOVA_BASE_URL" default:"https://naveropenapi.apigw.ntruss.com"`

	CredentialFilePath string `envconfig:"CREDENTIAL_FILE_PATH" default:"users.json"`
	HistoryWindowSize  int    `envconfig:"HISTORY_WINDOW_SIZE" default:"20"`
	MediaDir           string `envconfig:"MEDIA_DIR" default:"media"`
	VoiceCatalogPath   string `envconfig:"VOICE_CATALOG_PATH" default:"voices.yaml"`

	SMTPHost         string `envconfig:"SMTP_HOST"`
	SMTPPort         int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername     string `envconfig:"SMTP_USERNAME"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	DefaultFromEmail string `envconfig:"DEFAULT_FROM_EMAIL" default:"noreply@mindfulchat.com"`

	OutreachScanSchedule  string `envconfig:"OUTREACH_SCAN_SCHEDULE" default:"0 9 * * *"`
	EmailDispatchSchedule string `envconfig:"EMAIL_DISPATCH_SCHEDULE" default:"*/5 * * * *"`
	ScheduleTimezone      string `envconfig:"SCHEDULE_TIMEZONE" default:"UTC"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Warn if using default session secret (insecure for production)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = devSessionSecret
		slog.Warn("Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER: %s", c.DatabaseDriver)
	}
	if c.HistoryWindowSize <= 0 {
		return fmt.Errorf("HISTORY_WINDOW_SIZE must be positive, got %d", c.HistoryWindowSize)
	}
	return nil
}
