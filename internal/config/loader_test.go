package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimal environment a valid configuration needs.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SMTP_SERVER", "smtp.example.com")
	t.Setenv("SMTP_EMAIL", "sister@example.com")
	t.Setenv("SMTP_KEY", "mail-secret")
	t.Setenv("MODEL_URL", "https://api.example.com/v1")
	t.Setenv("MODEL_KEY", "model-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "data/data.db", cfg.Database.Path)
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, "YourForeverSister", cfg.Mail.FromName)
	assert.Equal(t, "deepseek-ai/DeepSeek-V3", cfg.Model.Name)
	assert.Equal(t, "Kwai-Kolors/Kolors", cfg.Model.ImageName)
	assert.Equal(t, 35*time.Second, cfg.Model.ImageEvery)
	assert.Equal(t, "cache", cfg.Cache.Dir)
	assert.Equal(t, "06:00", cfg.Schedule.GenerateAt)
	assert.Equal(t, "08:00", cfg.Schedule.DeliverAt)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("IMG_MIN_INTERVAL", "10s")
	t.Setenv("GENERATE_AT", "05:30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Model.ImageEvery)
	assert.Equal(t, "05:30", cfg.Schedule.GenerateAt)
}

func TestLoadConfig_MissingRequiredFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SMTP_SERVER", "")

	_, err := LoadConfig()
	require.Error(t, err)

	cfgErr, ok := err.(*ConfigError)
	require.True(t, ok)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_InvalidEmailFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SMTP_EMAIL", "not-an-address")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_SecretsAreRedacted(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.NotContains(t, cfg.Mail.Key.String(), "mail-secret")
	assert.Equal(t, "mail-secret", cfg.Mail.Key.Unmask())
}
