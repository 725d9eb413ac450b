package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"DB_DRIVER", "DB_DSN", "DB_PATH", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME",
	"PORT", "JWT_SECRET", "TOKEN_DURATION", "SITE_URL", "INVITE_TTL", "INVITE_SWEEP_SCHEDULE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_EMAIL", "SMTP_PASS", "SMTP_FROM", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "./data/splitit.db", cfg.DBDSN)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DevJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.InviteTTL)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestFromEnvMySQLParts(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "ledger")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "db")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ledger:pw@tcp(db:3306)/splitit", cfg.DBDSN)
}

func TestFromEnvErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("INVITE_TTL", "a week")
	t.Setenv("DB_DRIVER", "postgres")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "INVITE_TTL")
	assert.Contains(t, err.Error(), "DB_DRIVER")
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SITE_URL=https://split.example\nSMTP_HOST=smtp.example\nSMTP_EMAIL=bot@split.example\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://split.example", cfg.SiteURL)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, "bot@split.example", cfg.SMTP.From)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
