package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/agenthub/venuecore/internal/blob/s3"
	rediscache "github.com/agenthub/venuecore/internal/cache/redis"
	"github.com/agenthub/venuecore/internal/config"
	"github.com/agenthub/venuecore/internal/notify"
	"github.com/agenthub/venuecore/internal/store/sqlite"
	"github.com/agenthub/venuecore/internal/venue"
	"github.com/agenthub/venuecore/internal/venue/binancefutures"
	"github.com/agenthub/venuecore/internal/venue/bybit"
	"github.com/agenthub/venuecore/internal/venue/drift"
	"github.com/agenthub/venuecore/internal/venue/evmdex"
	"github.com/agenthub/venuecore/internal/venue/hyperliquid"
	"github.com/agenthub/venuecore/internal/venue/jupiter"
	"github.com/agenthub/venuecore/internal/venue/kalshi"
	"github.com/agenthub/venuecore/internal/venue/manifold"
	"github.com/agenthub/venuecore/internal/venue/meteora"
	"github.com/agenthub/venuecore/internal/venue/mexc"
	"github.com/agenthub/venuecore/internal/venue/orca"
	"github.com/agenthub/venuecore/internal/venue/polymarket"
	"github.com/agenthub/venuecore/internal/venue/pumpfun"
	"github.com/agenthub/venuecore/internal/venue/raydium"
)

// Dependencies bundles every concrete dependency the application needs,
// generalizing the teacher's per-mode Dependencies bundle (internal/app's
// Wire) into the single always-on set this core service runs.
type Dependencies struct {
	DB       *sqlite.Client
	Store    *sqlite.Store
	Registry *venue.Registry

	Notifier *notify.Notifier

	RedisPriceCache *rediscache.PriceCache
	RedisSignalBus  *rediscache.SignalBus

	BackupArchiver *s3blob.BackupArchiver
}

// Wire constructs every dependency from cfg and returns them alongside a
// cleanup function that releases them in reverse order, the same shape as
// the teacher's internal/app.Wire.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	db, err := sqlite.Open(ctx, cfg.StateDir+"/venuecore.db")
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })
	deps.DB = db
	deps.Store = sqlite.NewStore(db)

	deps.Registry = buildRegistry(cfg, logger)

	var senders []notify.Sender
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	if cfg.Redis.Enabled {
		rc, err := rediscache.New(ctx, rediscache.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.RedisPriceCache = rediscache.NewPriceCache(rc)
		deps.RedisSignalBus = rediscache.NewSignalBus(rc)
	}

	if cfg.S3.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3c.Close() })
		writer := s3blob.NewWriter(s3c)
		deps.BackupArchiver = s3blob.NewBackupArchiver(writer)
	}

	return deps, cleanup, nil
}

// buildRegistry constructs one adapter per enabled venue. An adapter whose
// construction fails (evmdex needs a live RPC dial) is logged and skipped
// rather than aborting startup — the aggregator treats an unregistered
// venue the same as one that returned NotSupported.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *venue.Registry {
	reg := venue.NewRegistry()

	for tag, vc := range cfg.Venues {
		if !vc.Enabled {
			continue
		}
		switch tag {
		case "polymarket":
			reg.Register(polymarket.New(vc.BaseURL, vc.RPCURL))
		case "kalshi":
			reg.Register(kalshi.New(vc.BaseURL))
		case "hyperliquid":
			reg.Register(hyperliquid.New(vc.BaseURL))
		case "binancefutures":
			reg.Register(binancefutures.New(vc.BaseURL))
		case "bybit":
			reg.Register(bybit.New(vc.BaseURL))
		case "mexc":
			reg.Register(mexc.New(vc.BaseURL))
		case "manifold":
			reg.Register(manifold.New(vc.BaseURL))
		case "drift":
			reg.Register(drift.New(vc.BaseURL, vc.RPCURL))
		case "jupiter":
			reg.Register(jupiter.New(vc.BaseURL, vc.RPCURL))
		case "pumpfun":
			reg.Register(pumpfun.New(vc.BaseURL, vc.RPCURL))
		case "raydium":
			reg.Register(raydium.New(vc.BaseURL, vc.RPCURL))
		case "orca":
			reg.Register(orca.New(vc.BaseURL, vc.RPCURL))
		case "meteora":
			reg.Register(meteora.New(vc.BaseURL, vc.RPCURL))
		case "evmdex":
			// evmdex has no REST base URL; base_url instead carries the
			// Uniswap V2-compatible router contract address to quote against.
			adapter, err := evmdex.New(context.Background(), vc.RPCURL, vc.BaseURL)
			if err != nil {
				logger.Error("venue adapter init failed", slog.String("venue", tag), slog.String("error", err.Error()))
				continue
			}
			reg.Register(adapter)
		default:
			logger.Warn("unknown venue tag in config, skipping", slog.String("venue", tag))
		}
	}
	return reg
}
