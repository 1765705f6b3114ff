package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "SESSION_SECRET", "DATABASE_DRIVER", "HISTORY_WINDOW_SIZE", "CREDENTIAL_FILE_PATH", "ENV")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 20, cfg.HistoryWindowSize)
	assert.Equal(t, "users.json", cfg.CredentialFilePath)
	assert.Equal(t, devSessionSecret, cfg.SessionSecret)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("HISTORY_WINDOW_SIZE", "8")
	t.Setenv("CREDENTIAL_FILE_PATH", "/var/lib/mindful/users.json")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 8, cfg.HistoryWindowSize)
	assert.Equal(t, "/var/lib/mindful/users.json", cfg.CredentialFilePath)
	assert.Equal(t, "s3cret", cfg.SessionSecret)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")

	_, err := Load()
	assert.ErrorContains(t, err, "unsupported DATABASE_DRIVER")
}

func TestLoadRejectsNonPositiveHistoryWindow(t *testing.T) {
	unsetEnv(t, "DATABASE_DRIVER")
	t.Setenv("HISTORY_WINDOW_SIZE", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "HISTORY_WINDOW_SIZE")
}
