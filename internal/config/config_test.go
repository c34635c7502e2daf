package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "temp.box", cfg.Mailbox.Domain)
	assert.Equal(t, 24*time.Hour, cfg.Mailbox.DefaultTTL)
	assert.Equal(t, 24*time.Hour, cfg.Mailbox.EmailRetention)
	assert.Equal(t, time.Hour, cfg.Mailbox.SweepInterval)
	assert.Equal(t, 500_000, cfg.Mailbox.ChunkSize)
	assert.Equal(t, ":25", cfg.SMTP.BindAddr)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Empty(t, cfg.Database.Type)
	assert.Empty(t, cfg.Redis.Address)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TEMPBOX_SERVER_PORT", "9090")
	t.Setenv("TEMPBOX_MAILBOX_DOMAIN", "Example.ORG")
	t.Setenv("TEMPBOX_MAILBOX_DEFAULT_TTL", "48h")
	t.Setenv("TEMPBOX_MAILBOX_EMAIL_RETENTION", "12h")
	t.Setenv("TEMPBOX_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TEMPBOX_DATABASE_TYPE", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "example.org", cfg.Mailbox.Domain)
	assert.Equal(t, 48*time.Hour, cfg.Mailbox.DefaultTTL)
	assert.Equal(t, 12*time.Hour, cfg.Mailbox.EmailRetention)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Type)
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	t.Setenv("TEMPBOX_MAILBOX_DEFAULT_TTL", "not-a-duration")

	_, err := Load()
	assert.Error(t, err)
}
