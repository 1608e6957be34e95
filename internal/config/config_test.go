package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SECRET_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 336*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.LoginMaxAttempts)
	assert.Equal(t, "local", cfg.StorageDriver)
	assert.NotEmpty(t, cfg.SecretKey, "development gets a fallback key")
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SECRET_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "SECRET_KEY")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_TTL", "forever")

	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_TTL")
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5432", DBUser: "lms", DBPass: "pw", DBName: "lms", DBSSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=lms password=pw dbname=lms sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.DSN())
}

func TestOriginListAndMeiliHost(t *testing.T) {
	cfg := &Config{AllowedOrigins: " http://a , ,http://b", MeiliSearchHost: "meili"}
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.OriginList())
	assert.Equal(t, "http://meili:7700", cfg.MeiliHost())

	cfg.MeiliSearchHost = ""
	assert.Empty(t, cfg.MeiliHost())
}
