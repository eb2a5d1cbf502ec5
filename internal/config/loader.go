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
// built-in defaults, applies DUELBET_* environment variable overrides, and
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

// applyEnvOverrides reads well-known DUELBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "DUELBET_DATABASE_DSN")
	setStr(&cfg.Database.Host, "DUELBET_DATABASE_HOST")
	setInt(&cfg.Database.Port, "DUELBET_DATABASE_PORT")
	setStr(&cfg.Database.Database, "DUELBET_DATABASE_NAME")
	setStr(&cfg.Database.User, "DUELBET_DATABASE_USER")
	setStr(&cfg.Database.Password, "DUELBET_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "DUELBET_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "DUELBET_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "DUELBET_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "DUELBET_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DUELBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DUELBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DUELBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DUELBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DUELBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DUELBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DUELBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DUELBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "DUELBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DUELBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DUELBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DUELBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DUELBET_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "DUELBET_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "DUELBET_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "DUELBET_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DUELBET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DUELBET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DUELBET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DUELBET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "DUELBET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "DUELBET_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DUELBET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DUELBET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DUELBET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DUELBET_NOTIFY_EVENTS")

	// ── Escrow ──
	setInt(&cfg.Escrow.SupportRateLimit, "DUELBET_ESCROW_SUPPORT_RATE_LIMIT")
	setDuration(&cfg.Escrow.SupportRateWindow, "DUELBET_ESCROW_SUPPORT_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "DUELBET_MODE")
	setStr(&cfg.LogLevel, "DUELBET_LOG_LEVEL")
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
