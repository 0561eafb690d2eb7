package sqlite

// schemaStatements are executed, in order, inside migrate's transaction at
// startup. Every CREATE is idempotent per spec.md §4.1: CREATE TABLE/INDEX
// IF NOT EXISTS only. New columns are introduced via guarded ALTER in
// migrations.go, never by editing a statement here.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		external_platform_id TEXT NOT NULL UNIQUE,
		settings TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trading_credentials (
		user_id TEXT NOT NULL,
		venue TEXT NOT NULL,
		mode TEXT NOT NULL,
		encrypted_blob BLOB NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		last_used_at INTEGER,
		failed_attempts INTEGER NOT NULL DEFAULT 0,
		cooldown_until INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, venue)
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		venue TEXT NOT NULL,
		market_id TEXT NOT NULL,
		outcome_id TEXT NOT NULL,
		side TEXT NOT NULL,
		size REAL NOT NULL,
		avg_entry_price REAL NOT NULL,
		current_price REAL NOT NULL,
		opened_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		leverage REAL NOT NULL DEFAULT 0,
		margin_mode TEXT NOT NULL DEFAULT '',
		liquidation_price REAL,
		notional REAL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_key
		ON positions(user_id, venue, market_id, outcome_id)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_user ON positions(user_id)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		venue TEXT NOT NULL,
		venue_trade_id TEXT NOT NULL DEFAULT '',
		market_id TEXT NOT NULL,
		outcome_id TEXT NOT NULL DEFAULT '',
		side TEXT NOT NULL,
		size REAL NOT NULL,
		price REAL NOT NULL,
		fee REAL NOT NULL DEFAULT 0,
		realized_pnl REAL,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_dedup
		ON trades(venue, venue_trade_id) WHERE venue_trade_id != ''`,
	`CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(venue, market_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS funding_payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		venue TEXT NOT NULL,
		symbol TEXT NOT NULL,
		rate REAL NOT NULL,
		amount REAL NOT NULL,
		position_size REAL NOT NULL,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_funding_user ON funding_payments(user_id, venue, timestamp)`,
	`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		total_value REAL NOT NULL,
		total_pnl REAL NOT NULL,
		total_pnl_pct REAL NOT NULL,
		total_cost_basis REAL NOT NULL,
		positions_count INTEGER NOT NULL,
		per_venue_breakdown TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_user ON portfolio_snapshots(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS markets (
		venue TEXT NOT NULL,
		market_id TEXT NOT NULL,
		question TEXT NOT NULL,
		outcomes TEXT NOT NULL DEFAULT '[]',
		end_date INTEGER,
		resolved INTEGER NOT NULL DEFAULT 0,
		last_seen_at INTEGER NOT NULL,
		cached_raw BLOB,
		PRIMARY KEY (venue, market_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_markets_last_seen ON markets(last_seen_at)`,
	`CREATE TABLE IF NOT EXISTS market_index_entries (
		venue TEXT NOT NULL,
		market_id TEXT NOT NULL,
		question TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		content_hash TEXT NOT NULL,
		embedding BLOB,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (venue, market_id)
	)`,
	`CREATE TABLE IF NOT EXISTS arb_matches (
		id TEXT PRIMARY KEY,
		markets TEXT NOT NULL,
		matched_by TEXT NOT NULL,
		similarity REAL NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS arb_opportunities (
		id TEXT PRIMARY KEY,
		match_id TEXT NOT NULL,
		buy_venue TEXT NOT NULL,
		buy_market_id TEXT NOT NULL,
		buy_outcome TEXT NOT NULL,
		buy_price REAL NOT NULL,
		sell_venue TEXT NOT NULL,
		sell_market_id TEXT NOT NULL,
		sell_outcome TEXT NOT NULL,
		sell_price REAL NOT NULL,
		spread REAL NOT NULL,
		spread_pct REAL NOT NULL,
		profit_per_100 REAL NOT NULL,
		confidence REAL NOT NULL,
		detected_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		is_active INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_arb_opps_active ON arb_opportunities(is_active)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		condition TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		triggered INTEGER NOT NULL DEFAULT 0,
		trigger_count INTEGER NOT NULL DEFAULT 0,
		channel TEXT NOT NULL DEFAULT '',
		chat_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		last_triggered_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id)`,
	`CREATE TABLE IF NOT EXISTS scheduled_jobs (
		id TEXT PRIMARY KEY,
		cron_spec TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		last_run_at INTEGER,
		last_result TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS _schema_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	)`,
}

// schemaVersion is bumped whenever migrations.go adds a guarded ALTER. It is
// recorded in _schema_version so future additive migrations can tell what
// has already run, even though every statement here is also independently
// idempotent.
const schemaVersion = 1
