package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VENUECORE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known VENUECORE_* environment variables and
// overwrites the corresponding Config fields when set, per spec.md §6
// ("Configuration via environment"). Per-venue overrides use the shape
// VENUECORE_VENUE_<TAG>_API_KEY / _API_SECRET / _BASE_URL / _RPC_URL /
// _ENABLED so operators never need to hand-edit the TOML file to rotate a
// key or flip a venue on.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.StateDir, "VENUECORE_STATE_DIR")
	setBool(&cfg.DryRun, "VENUECORE_DRY_RUN")
	setStr(&cfg.LogLevel, "VENUECORE_LOG_LEVEL")
	setStr(&cfg.Vault.Passphrase, "VENUECORE_VAULT_PASSPHRASE")

	setInt(&cfg.Backup.IntervalMinutes, "VENUECORE_BACKUP_INTERVAL_MINUTES")
	setInt(&cfg.Backup.Retention, "VENUECORE_BACKUP_RETENTION")
	setStr(&cfg.Backup.Dir, "VENUECORE_BACKUP_DIR")

	setInt(&cfg.Aggregator.FetchTimeoutSeconds, "VENUECORE_AGGREGATOR_FETCH_TIMEOUT_SECONDS")
	setInt(&cfg.Aggregator.CacheTTLSeconds, "VENUECORE_AGGREGATOR_CACHE_TTL_SECONDS")

	setInt(&cfg.History.SyncIntervalMinutes, "VENUECORE_HISTORY_SYNC_INTERVAL_MINUTES")
	setInt(&cfg.History.PullLimit, "VENUECORE_HISTORY_PULL_LIMIT")

	setBool(&cfg.Arbitrage.Enabled, "VENUECORE_ARBITRAGE_ENABLED")
	setInt64(&cfg.Arbitrage.PollIntervalMs, "VENUECORE_ARBITRAGE_POLL_INTERVAL_MS")
	setInt64(&cfg.Arbitrage.OpportunityTTLMs, "VENUECORE_ARBITRAGE_OPPORTUNITY_TTL_MS")
	setFloat64(&cfg.Arbitrage.MinSpread, "VENUECORE_ARBITRAGE_MIN_SPREAD")
	setFloat64(&cfg.Arbitrage.MinMatchConfidence, "VENUECORE_ARBITRAGE_MIN_MATCH_CONFIDENCE")

	setInt(&cfg.Scheduler.DeadlineSeconds, "VENUECORE_SCHEDULER_DEADLINE_SECONDS")

	setBool(&cfg.Redis.Enabled, "VENUECORE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "VENUECORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VENUECORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VENUECORE_REDIS_DB")

	setBool(&cfg.S3.Enabled, "VENUECORE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VENUECORE_S3_ENDPOINT")
	setStr(&cfg.S3.Bucket, "VENUECORE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VENUECORE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VENUECORE_S3_SECRET_KEY")

	setStr(&cfg.Notify.TelegramToken, "VENUECORE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VENUECORE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VENUECORE_NOTIFY_DISCORD_WEBHOOK_URL")

	for tag, v := range cfg.Venues {
		prefix := "VENUECORE_VENUE_" + strings.ToUpper(tag) + "_"
		setBool(&v.Enabled, prefix+"ENABLED")
		setStr(&v.BaseURL, prefix+"BASE_URL")
		setStr(&v.RPCURL, prefix+"RPC_URL")
		setStr(&v.APIKey, prefix+"API_KEY")
		setStr(&v.APISecret, prefix+"API_SECRET")
		cfg.Venues[tag] = v
	}
}

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
