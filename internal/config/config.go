// Package config defines the top-level configuration for the settlement
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OCTAGON_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Settlement SettlementConfig `toml:"settlement"`
	Jobs       JobsConfig       `toml:"jobs"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settlement
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP API server parameters. AdminAPIKey guards the
// /api/admin routes; when empty the admin surface is disabled entirely.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	AdminAPIKey string   `toml:"admin_api_key"`
	// BetRateLimit caps bet placements per user per minute (0 = unlimited).
	BetRateLimit int `toml:"bet_rate_limit"`
	// APIRateLimit caps requests per client IP per minute (0 = unlimited).
	APIRateLimit int `toml:"api_rate_limit"`
}

// SettlementConfig holds the economic constants of the engine. Amounts are
// whole coins; rates are basis points.
type SettlementConfig struct {
	MinStake        int64    `toml:"min_stake"`
	ListingFee      int64    `toml:"listing_fee"`
	SignupBonus     int64    `toml:"signup_bonus"`
	CheckInBonus    int64    `toml:"checkin_bonus"`
	CreatorBonusBps int      `toml:"creator_bonus_bps"`
	CommunityFeeBps int      `toml:"community_fee_bps"`
	DisputeWindow   duration `toml:"dispute_window"`
}

// JobsConfig holds the background job schedule.
type JobsConfig struct {
	SweepInterval    duration `toml:"sweep_interval"`
	FinalizeInterval duration `toml:"finalize_interval"`
	ArchiveEnabled   bool     `toml:"archive_enabled"`
	ArchiveInterval  duration `toml:"archive_interval"`
}

// NotifyConfig holds notification channel credentials and the event filter.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML values like "72h" decode naturally.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration: 1000-coin signup bonus,
// 100-coin listing fee, 1-coin minimum stake, 5% creator bonus and a 72-hour
// challenge window.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "octagon",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "octagon-audit",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:         8080,
			BetRateLimit: 30,
			APIRateLimit: 300,
		},
		Settlement: SettlementConfig{
			MinStake:        1,
			ListingFee:      100,
			SignupBonus:     1000,
			CheckInBonus:    50,
			CreatorBonusBps: 500,
			CommunityFeeBps: 200,
			DisputeWindow:   duration{72 * time.Hour},
		},
		Jobs: JobsConfig{
			SweepInterval:    duration{time.Minute},
			FinalizeInterval: duration{5 * time.Minute},
			ArchiveInterval:  duration{6 * time.Hour},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for inconsistencies and returns a single
// error aggregating every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		errs = append(errs, "postgres: either dsn or host/database/user must be set")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}
	if c.Server.BetRateLimit < 0 {
		errs = append(errs, "server: bet_rate_limit must not be negative")
	}
	if c.Server.APIRateLimit < 0 {
		errs = append(errs, "server: api_rate_limit must not be negative")
	}

	if c.Settlement.MinStake < 1 {
		errs = append(errs, "settlement: min_stake must be at least 1")
	}
	if c.Settlement.ListingFee < 0 {
		errs = append(errs, "settlement: listing_fee must not be negative")
	}
	if c.Settlement.SignupBonus < 0 {
		errs = append(errs, "settlement: signup_bonus must not be negative")
	}
	if c.Settlement.CheckInBonus < 0 {
		errs = append(errs, "settlement: checkin_bonus must not be negative")
	}
	if c.Settlement.CreatorBonusBps < 0 || c.Settlement.CreatorBonusBps > 10000 {
		errs = append(errs, "settlement: creator_bonus_bps must be within [0, 10000]")
	}
	if c.Settlement.CommunityFeeBps < 0 || c.Settlement.CommunityFeeBps > 10000 {
		errs = append(errs, "settlement: community_fee_bps must be within [0, 10000]")
	}
	if c.Settlement.DisputeWindow.Duration <= 0 {
		errs = append(errs, "settlement: dispute_window must be positive")
	}

	if c.Jobs.SweepInterval.Duration <= 0 {
		errs = append(errs, "jobs: sweep_interval must be positive")
	}
	if c.Jobs.FinalizeInterval.Duration <= 0 {
		errs = append(errs, "jobs: finalize_interval must be positive")
	}
	if c.Jobs.ArchiveEnabled {
		if c.Jobs.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "jobs: archive_interval must be positive when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required when jobs.archive_enabled is true")
		}
	}

	// Telegram credentials must be set together, or not at all.
	hasToken := c.Notify.TelegramToken != ""
	hasChat := c.Notify.TelegramChatID != ""
	if hasToken != hasChat {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
