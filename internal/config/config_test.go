package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longSecret = "0123456789abcdef0123456789abcdef"

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accounts")
	t.Setenv("JWT_SECRET", longSecret)

	cfg, err := loadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 8, cfg.PasswordMinLength)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.True(t, cfg.RunMigrations)
	assert.True(t, cfg.IsDevelopment())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accounts")
	t.Setenv("JWT_SECRET", longSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("GO_ENV", "production")

	cfg, err := loadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 0.5, cfg.RateLimitRPS)
	assert.False(t, cfg.RunMigrations)
	assert.True(t, cfg.IsProduction())
}

func TestLoadFromEnv_RequiredAndMalformed(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", longSecret)
	_, err := loadFromEnv()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/accounts")
	t.Setenv("HTTP_PORT", "eighty")
	_, err = loadFromEnv()
	assert.ErrorContains(t, err, "HTTP_PORT")
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := &Config{
		HTTPPort:  0,
		LogLevel:  "verbose",
		LogFormat: "xml",
		JWTSecret: "short",
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"HTTP_PORT", "LOG_LEVEL", "LOG_FORMAT", "JWT_SECRET", "BCRYPT_COST", "RATE_LIMIT_RPS"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestRedisAddrAndSlogLevel(t *testing.T) {
	cfg := &Config{RedisURL: "redis://cache:6379", LogLevel: "debug"}
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	cfg.LogLevel = "nonsense"
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}
