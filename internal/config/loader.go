package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OCTAGON_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OCTAGON_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "OCTAGON_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "OCTAGON_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "OCTAGON_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OCTAGON_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OCTAGON_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OCTAGON_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OCTAGON_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OCTAGON_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OCTAGON_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OCTAGON_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OCTAGON_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OCTAGON_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OCTAGON_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OCTAGON_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OCTAGON_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OCTAGON_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OCTAGON_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "OCTAGON_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OCTAGON_S3_REGION")
	setStr(&cfg.S3.Bucket, "OCTAGON_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OCTAGON_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OCTAGON_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OCTAGON_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OCTAGON_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "OCTAGON_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OCTAGON_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "OCTAGON_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.BetRateLimit, "OCTAGON_SERVER_BET_RATE_LIMIT")
	setInt(&cfg.Server.APIRateLimit, "OCTAGON_SERVER_API_RATE_LIMIT")

	// ── Settlement ──
	setInt64(&cfg.Settlement.MinStake, "OCTAGON_SETTLEMENT_MIN_STAKE")
	setInt64(&cfg.Settlement.ListingFee, "OCTAGON_SETTLEMENT_LISTING_FEE")
	setInt64(&cfg.Settlement.SignupBonus, "OCTAGON_SETTLEMENT_SIGNUP_BONUS")
	setInt64(&cfg.Settlement.CheckInBonus, "OCTAGON_SETTLEMENT_CHECKIN_BONUS")
	setInt(&cfg.Settlement.CreatorBonusBps, "OCTAGON_SETTLEMENT_CREATOR_BONUS_BPS")
	setInt(&cfg.Settlement.CommunityFeeBps, "OCTAGON_SETTLEMENT_COMMUNITY_FEE_BPS")
	setDuration(&cfg.Settlement.DisputeWindow, "OCTAGON_SETTLEMENT_DISPUTE_WINDOW")

	// ── Jobs ──
	setDuration(&cfg.Jobs.SweepInterval, "OCTAGON_JOBS_SWEEP_INTERVAL")
	setDuration(&cfg.Jobs.FinalizeInterval, "OCTAGON_JOBS_FINALIZE_INTERVAL")
	setBool(&cfg.Jobs.ArchiveEnabled, "OCTAGON_JOBS_ARCHIVE_ENABLED")
	setDuration(&cfg.Jobs.ArchiveInterval, "OCTAGON_JOBS_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OCTAGON_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OCTAGON_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OCTAGON_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OCTAGON_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "OCTAGON_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
