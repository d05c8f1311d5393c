package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_PassValidation(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestDefaults_EconomicConstants(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, int64(1000), cfg.Settlement.SignupBonus)
	assert.Equal(t, int64(100), cfg.Settlement.ListingFee)
	assert.Equal(t, int64(1), cfg.Settlement.MinStake)
	assert.Equal(t, int64(50), cfg.Settlement.CheckInBonus)
	assert.Equal(t, 500, cfg.Settlement.CreatorBonusBps)
	assert.Equal(t, 200, cfg.Settlement.CommunityFeeBps)
	assert.Equal(t, 72*time.Hour, cfg.Settlement.DisputeWindow.Duration)
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestValidate_RejectsBonusBpsOutOfRange(t *testing.T) {
	cfg := Defaults()
	cfg.Settlement.CreatorBonusBps = 10001

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creator_bonus_bps")
}

func TestValidate_RejectsTelegramHalfConfigured(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "token"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestValidate_ArchiveRequiresBucket(t *testing.T) {
	cfg := Defaults()
	cfg.Jobs.ArchiveEnabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestValidate_AggregatesAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "verbose"
	cfg.Redis.Addr = ""
	cfg.Settlement.MinStake = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "redis")
	assert.Contains(t, err.Error(), "min_stake")
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
log_level = "debug"

[server]
port = 9090

[settlement]
dispute_window = "48h"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 48*time.Hour, cfg.Settlement.DisputeWindow.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, int64(1000), cfg.Settlement.SignupBonus)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTOML(t, `
[server]
port = 9090
`)

	t.Setenv("OCTAGON_SERVER_PORT", "7070")
	t.Setenv("OCTAGON_POSTGRES_PASSWORD", "sekrit")
	t.Setenv("OCTAGON_SETTLEMENT_DISPUTE_WINDOW", "24h")
	t.Setenv("OCTAGON_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Postgres.Password)
	assert.Equal(t, 24*time.Hour, cfg.Settlement.DisputeWindow.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_DatabaseURLAlias(t *testing.T) {
	path := writeTOML(t, "")

	t.Setenv("OCTAGON_DATABASE_URL", "postgres://u:p@db:5432/octagon")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/octagon", cfg.Postgres.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Postgres.DSN = "postgres://u:pw@host/db"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.AdminAPIKey = "admin-key"
	cfg.Notify.TelegramToken = "tg-token"
	cfg.Notify.TelegramChatID = "42"

	red := RedactedConfig(&cfg)

	assert.NotContains(t, red.Postgres.Password, "pg-secret")
	assert.NotContains(t, red.Postgres.DSN, "pw")
	assert.NotContains(t, red.Redis.Password, "redis-secret")
	assert.NotContains(t, red.S3.SecretKey, "s3-secret")
	assert.NotContains(t, red.Server.AdminAPIKey, "admin-key")
	assert.NotContains(t, red.Notify.TelegramToken, "tg-token")

	// The original must be left untouched.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)
}

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
