// Package config defines the top-level configuration for venuecore and
// provides validation helpers, grounded on the teacher's internal/config
// package (TOML file + env override + Validate shape), generalized from one
// wallet/one-venue bot to a venue-keyed map covering all fourteen adapters.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by VENUECORE_* environment
// variables.
type Config struct {
	StateDir string `toml:"state_dir"`
	DryRun   bool   `toml:"dry_run"`
	LogLevel string `toml:"log_level"`

	Venues     map[string]VenueConfig `toml:"venues"`
	Backup     BackupConfig           `toml:"backup"`
	Aggregator AggregatorConfig       `toml:"aggregator"`
	History    HistoryConfig          `toml:"history"`
	Arbitrage  ArbitrageConfig        `toml:"arbitrage"`
	Scheduler  SchedulerConfig        `toml:"scheduler"`
	Vault      VaultConfig            `toml:"vault"`
	Redis      RedisConfig            `toml:"redis"`
	S3         S3Config               `toml:"s3"`
	Notify     NotifyConfig           `toml:"notify"`
}

// VenueConfig holds the per-venue connection parameters a venue.Adapter
// constructor needs. Not every field applies to every venue (e.g. RPCURL is
// the RPC endpoint for the Solana and EVM venues, Polymarket's Gamma API URL,
// and unused elsewhere); adapters read only the fields their wire protocol
// needs.
type VenueConfig struct {
	Enabled  bool   `toml:"enabled"`
	BaseURL  string `toml:"base_url"`
	RPCURL   string `toml:"rpc_url"`
	APIKey   string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

// BackupConfig controls Store.backupNow scheduling and retention.
type BackupConfig struct {
	IntervalMinutes int    `toml:"interval_minutes"`
	Retention       int    `toml:"retention"`
	Dir             string `toml:"dir"`
}

// AggregatorConfig controls the venue fan-out's per-request timeout and
// merged-result cache TTL.
type AggregatorConfig struct {
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
	CacheTTLSeconds     int `toml:"cache_ttl_seconds"`
}

// HistoryConfig controls the periodic trade-sync pull window.
type HistoryConfig struct {
	SyncIntervalMinutes int `toml:"sync_interval_minutes"`
	PullLimit           int `toml:"pull_limit"`
}

// ArbitrageConfig controls the ArbitrageEngine's thresholds and TTLs. The
// tick cadence comes from the Scheduler's "arbitrage.tick" cron entry;
// PollIntervalMs is validated but does not set it.
type ArbitrageConfig struct {
	Enabled             bool    `toml:"enabled"`
	PollIntervalMs      int64   `toml:"poll_interval_ms"`
	OpportunityTTLMs    int64   `toml:"opportunity_ttl_ms"`
	MinSpread           float64 `toml:"min_spread"`
	MinMatchConfidence  float64 `toml:"min_match_confidence"`
	PriceCacheFreshSecs int     `toml:"price_cache_fresh_secs"`
}

// SchedulerConfig controls cron specs for the registered jobs and the
// per-run execution deadline.
type SchedulerConfig struct {
	DeadlineSeconds int               `toml:"deadline_seconds"`
	Jobs            map[string]string `toml:"jobs"`
}

// VaultConfig holds the CredentialVault passphrase. This is deliberately
// TOML-overridable only for local development; production deployments
// should always set VENUECORE_VAULT_PASSPHRASE so the secret never touches
// a checked-in file.
type VaultConfig struct {
	Passphrase string `toml:"passphrase"`
}

// RedisConfig holds optional distributed-cache/signal-bus connection
// parameters, kept from the teacher's internal/config for the
// SignalBus/price-cache wiring.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds optional off-box backup archive parameters, kept from the
// teacher's internal/config for internal/blob/s3.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials, kept from the
// teacher's internal/config for internal/notify.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s"), kept from the teacher's config package.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// knownVenues is the fourteen adapters §2 of SPEC_FULL.md names; Defaults
// pre-populates a disabled stub for each so operators only need to flip
// `enabled = true` and fill in credentials rather than hand-write the table.
var knownVenues = []string{
	"polymarket", "kalshi", "hyperliquid",
	"binancefutures", "bybit", "mexc",
	"drift", "manifold", "jupiter", "pumpfun", "raydium", "orca", "meteora",
	"evmdex",
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	venues := make(map[string]VenueConfig, len(knownVenues))
	for _, tag := range knownVenues {
		venues[tag] = VenueConfig{Enabled: false}
	}
	venues["polymarket"] = VenueConfig{BaseURL: "https://clob.polymarket.com", RPCURL: "https://gamma-api.polymarket.com"}
	venues["kalshi"] = VenueConfig{BaseURL: "https://api.elections.kalshi.com/trade-api/v2"}
	venues["hyperliquid"] = VenueConfig{BaseURL: "https://api.hyperliquid.xyz"}
	venues["binancefutures"] = VenueConfig{BaseURL: "https://fapi.binance.com"}
	venues["bybit"] = VenueConfig{BaseURL: "https://api.bybit.com"}
	venues["mexc"] = VenueConfig{BaseURL: "https://contract.mexc.com"}
	venues["manifold"] = VenueConfig{BaseURL: "https://api.manifold.markets"}
	venues["drift"] = VenueConfig{RPCURL: "https://api.mainnet-beta.solana.com", BaseURL: "https://dlob.drift.trade"}
	venues["jupiter"] = VenueConfig{RPCURL: "https://api.mainnet-beta.solana.com", BaseURL: "https://quote-api.jup.ag"}
	venues["pumpfun"] = VenueConfig{RPCURL: "https://api.mainnet-beta.solana.com", BaseURL: "https://frontend-api.pump.fun"}
	venues["raydium"] = VenueConfig{RPCURL: "https://api.mainnet-beta.solana.com", BaseURL: "https://api-v3.raydium.io"}
	venues["orca"] = VenueConfig{RPCURL: "https://api.mainnet-beta.solana.com", BaseURL: "https://api.orca.so"}
	venues["meteora"] = VenueConfig{RPCURL: "https://api.mainnet-beta.solana.com", BaseURL: "https://dlmm-api.meteora.ag"}
	venues["evmdex"] = VenueConfig{RPCURL: "https://eth.llamarpc.com"}

	return Config{
		StateDir: "./data",
		DryRun:   false,
		LogLevel: "info",
		Venues:   venues,
		Backup: BackupConfig{
			IntervalMinutes: 60,
			Retention:       24,
			Dir:             "backups",
		},
		Aggregator: AggregatorConfig{
			FetchTimeoutSeconds: 10,
			CacheTTLSeconds:     30,
		},
		History: HistoryConfig{
			SyncIntervalMinutes: 15,
			PullLimit:           200,
		},
		Arbitrage: ArbitrageConfig{
			Enabled:             true,
			PollIntervalMs:      10_000,
			OpportunityTTLMs:    60_000,
			MinSpread:           0.02,
			MinMatchConfidence:  0.8,
			PriceCacheFreshSecs: 5,
		},
		Scheduler: SchedulerConfig{
			DeadlineSeconds: 300,
			Jobs: map[string]string{
				"portfolio.snapshot":  "0 */1 * * *",
				"history.sync":        "*/15 * * * *",
				"arbitrage.tick":      "* * * * *",
				"db.backup":           "0 * * * *",
				"market.index.prune":  "0 3 * * *",
				"sessions.prune":      "30 3 * * *",
			},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "alert_triggered", "backup_failed"},
		},
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.StateDir == "" {
		errs = append(errs, "state_dir must not be empty")
	}
	if c.Vault.Passphrase == "" {
		errs = append(errs, "vault: passphrase must be set (VENUECORE_VAULT_PASSPHRASE)")
	}

	if c.Backup.IntervalMinutes <= 0 {
		errs = append(errs, "backup: interval_minutes must be > 0")
	}
	if c.Backup.Retention <= 0 {
		errs = append(errs, "backup: retention must be > 0")
	}

	if c.Aggregator.FetchTimeoutSeconds <= 0 {
		errs = append(errs, "aggregator: fetch_timeout_seconds must be > 0")
	}
	if c.Aggregator.CacheTTLSeconds <= 0 {
		errs = append(errs, "aggregator: cache_ttl_seconds must be > 0")
	}

	if c.Arbitrage.Enabled {
		if c.Arbitrage.PollIntervalMs <= 0 {
			errs = append(errs, "arbitrage: poll_interval_ms must be > 0 when enabled")
		}
		if c.Arbitrage.MinSpread <= 0 {
			errs = append(errs, "arbitrage: min_spread must be > 0 when enabled")
		}
		if c.Arbitrage.MinMatchConfidence <= 0 || c.Arbitrage.MinMatchConfidence > 1 {
			errs = append(errs, "arbitrage: min_match_confidence must be in (0,1]")
		}
	}

	if c.Scheduler.DeadlineSeconds <= 0 {
		errs = append(errs, "scheduler: deadline_seconds must be > 0")
	}

	anyEnabled := false
	for tag, v := range c.Venues {
		if !v.Enabled {
			continue
		}
		anyEnabled = true
		if v.BaseURL == "" && v.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("venues.%s: enabled but neither base_url nor rpc_url is set", tag))
		}
	}
	if !anyEnabled {
		errs = append(errs, "venues: at least one venue must be enabled")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
