package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres", Name: "secure_gateway", SSLMode: "disable",
		},
		Security: SecurityConfig{
			TokenSecret:      "test-secret",
			AnonymizerSecret: "anon-secret",
			AccessTokenTTL:   30 * time.Minute,
			RefreshTokenTTL:  168 * time.Hour,
			RatePerMinute:    60,
			RatePerHour:      1000,
			RatePerDay:       10000,
		},
		Environment: "development",
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("ANONYMIZER_SECRET", "anon-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Security.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.Security.RefreshTokenTTL)
	assert.Equal(t, ".encryption_key", cfg.Security.EncryptionKeyFile)
	assert.Equal(t, 60, cfg.Security.RatePerMinute)
	assert.Equal(t, 1000, cfg.Security.RatePerHour)
	assert.Equal(t, 10000, cfg.Security.RatePerDay)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("ANONYMIZER_SECRET", "anon-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "10")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Security.AccessTokenTTL)
	assert.Equal(t, 10, cfg.Security.RatePerMinute)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoadMissingTokenSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")
	t.Setenv("ANONYMIZER_SECRET", "anon-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_SECRET")
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsShortSecretInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.Security.TokenSecret = "short"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsRefreshShorterThanAccess(t *testing.T) {
	cfg := validConfig()
	cfg.Security.RefreshTokenTTL = 10 * time.Minute
	assert.Error(t, cfg.Validate())
}

func TestDatabaseURLPrecedence(t *testing.T) {
	d := DatabaseConfig{
		URL:  "postgres://user:pass@db:5432/app?sslmode=require",
		Host: "ignored",
	}
	assert.Equal(t, "postgres://user:pass@db:5432/app?sslmode=require", d.DSN())
	assert.Equal(t, "database_url=<redacted>", d.LogString())
}

func TestDatabaseDSNFromFields(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "app", Password: "secret",
		Name: "secure_gateway", SSLMode: "disable",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=secure_gateway")
	assert.NotContains(t, d.LogString(), "secret")
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("ANONYMIZER_SECRET", "anon-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Security.AccessTokenTTL)
}
