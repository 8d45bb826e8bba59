package config

import (
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": strongSecret,
		"APP_ENV":    "prod",
	}))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, 10*time.Minute, cfg.VerificationTTL)
	assert.Equal(t, 24*time.Hour, cfg.LinkTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "development", cfg.MailMode)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":       "dev",
		"APP_ENV":          "development",
		"DB_DRIVER":        " SQLite3 ",
		"ACCESS_TOKEN_TTL": "15m",
		"PRUNE_INTERVAL":   "0s",
	}))
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Zero(t, cfg.PruneInterval)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":  {},
		"weak secret":     {"JWT_SECRET": "changeme", "APP_ENV": "prod"},
		"short secret":    {"JWT_SECRET": "short-but-not-weak", "APP_ENV": "prod"},
		"bad driver":      {"JWT_SECRET": strongSecret, "DB_DRIVER": "oracle"},
		"zero lifetime":   {"JWT_SECRET": strongSecret, "VERIFIED_TOKEN_TTL": "0s"},
		"unparseable ttl": {"JWT_SECRET": strongSecret, "ACCESS_TOKEN_TTL": "soon"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}

func TestUnsetEnvIsNotDevelopment(t *testing.T) {
	_, err := LoadFrom(envconfig.MapLookuper(map[string]string{"JWT_SECRET": "secret"}))
	assert.Error(t, err)

	cfg, err := LoadFrom(envconfig.MapLookuper(map[string]string{"JWT_SECRET": strongSecret}))
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDevelopment())
}

func TestValidateMissingSecret(t *testing.T) {
	assert.ErrorIs(t, Config{}.Validate(), ErrMissingSecret)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	rl, err := LoadRateLimitConfig(envconfig.MapLookuper(map[string]string{
		"RATE_LIMIT_CAPACITY":        "0",
		"RATE_LIMIT_REFILL_TOKENS":   "-3",
		"RATE_LIMIT_REFILL_INTERVAL": "2s",
		"RATE_LIMIT_TTL":             "1s",
	}))
	require.NoError(t, err)
	assert.True(t, rl.Enabled)
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, 10*time.Second, rl.TTL)
	assert.Equal(t, "ip_route", rl.KeyStrategy)
}

func TestRedisAddress(t *testing.T) {
	rc, err := LoadRedisConfig(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", rc.Address())

	rc.Host, rc.Port = "cache", "6380"
	assert.Equal(t, "cache:6380", rc.Address())

	assert.Nil(t, NewRedisClient(RedisConfig{Enabled: false}))
}
