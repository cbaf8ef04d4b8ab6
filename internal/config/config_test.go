package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("STORAGE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.NotEqual(t, cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret)
	assert.False(t, cfg.EventsEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "r")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("COOKIE_SECURE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.Auth.CookieSecure)
	assert.True(t, cfg.EventsEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("BadDuration", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_TTL", "soon")
		_, err := Load()
		assert.ErrorContains(t, err, "ACCESS_TOKEN_TTL")
	})

	t.Run("SameSecrets", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_SECRET", "same")
		t.Setenv("REFRESH_TOKEN_SECRET", "same")
		_, err := Load()
		assert.ErrorContains(t, err, "must differ")
	})

	t.Run("UnknownStorage", func(t *testing.T) {
		t.Setenv("STORAGE", "mysql")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown STORAGE")
	})

	t.Run("AccessLongerThanRefresh", func(t *testing.T) {
		t.Setenv("ACCESS_TOKEN_TTL", "200h")
		_, err := Load()
		assert.ErrorContains(t, err, "shorter")
	})
}
