package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tradedesk/internal/auth"
	s3blob "github.com/alanyoungcy/tradedesk/internal/blob/s3"
	"github.com/alanyoungcy/tradedesk/internal/cache/redis"
	"github.com/alanyoungcy/tradedesk/internal/config"
	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/metrics"
	"github.com/alanyoungcy/tradedesk/internal/notify"
	"github.com/alanyoungcy/tradedesk/internal/platform/backend"
	"github.com/alanyoungcy/tradedesk/internal/server/handler"
	"github.com/alanyoungcy/tradedesk/internal/service"
	"github.com/alanyoungcy/tradedesk/internal/session"
	"github.com/alanyoungcy/tradedesk/internal/store/postgres"
	"github.com/alanyoungcy/tradedesk/internal/view"
)

var (
	_ view.Gateway = (*backend.Client)(nil)
	_ session.Feed = (*backend.FeedClient)(nil)
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Metrics *metrics.Metrics
	Gateway *backend.Client
	Feed    *backend.FeedClient
	Session *session.Session

	// Persistence, wired only for modes that record.
	PriceCache domain.PriceCache
	EventBus   domain.EventBus
	PriceStore domain.PriceStore
	OrderStore domain.OrderStore
	Archiver   domain.Archiver
	Recorder   *service.Recorder

	// Health probes the persistence backends for /api/health.
	Health map[string]handler.Checker

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Health:  map[string]handler.Checker{},
	}

	// --- Backend gateway + feed ---
	tokens := auth.NewTokenSource(auth.Config{
		Token:         cfg.Identity.Token,
		TokenFile:     cfg.Identity.TokenFile,
		TokenPassword: cfg.Identity.TokenPassword,
	})
	deps.Gateway = backend.NewClient(cfg.Backend.BaseURL, tokens,
		backend.WithTimeout(cfg.Backend.Timeout.Duration),
		backend.WithRateLimit(cfg.Backend.RateLimitRPS, cfg.Backend.RateLimitBurst),
		backend.WithMetrics(deps.Metrics),
	)

	feedURL := cfg.Feed.URL
	if feedURL == "" {
		u, err := backend.StreamURL(cfg.Backend.BaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: feed url: %w", err)
		}
		feedURL = u
	}
	deps.Feed = backend.NewFeedClient(backend.FeedConfig{
		URL:          feedURL,
		PingInterval: cfg.Feed.PingInterval.Duration,
		Logger:       logger,
		Metrics:      deps.Metrics,
	})
	closers = append(closers, func() { _ = deps.Feed.Close() })

	deps.Session = session.New(session.Config{
		Symbol:             cfg.Polling.Symbol,
		PricesInterval:     cfg.Polling.PricesInterval.Duration,
		NewsInterval:       cfg.Polling.NewsInterval.Duration,
		AnalysisInterval:   cfg.Polling.AnalysisInterval.Duration,
		SimulationInterval: cfg.Polling.SimulationInterval.Duration,
		HistoryLimit:       cfg.Polling.HistoryLimit,
	}, deps.Gateway, deps.Feed, logger,
		session.WithMetrics(deps.Metrics),
		session.WithMessages(view.CatalogFor(cfg.Polling.Locale)),
	)
	closers = append(closers, func() { _ = deps.Session.Close() })

	if cfg.Records() {
		if err := wireStorage(ctx, cfg, deps, &closers, logger); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
			cfg.Notify.TelegramAPIBase,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// wireStorage connects Redis, Postgres and (optionally) S3 and builds the
// recorder over them.
func wireStorage(ctx context.Context, cfg *config.Config, deps *Dependencies, closers *[]func(), logger *slog.Logger) error {
	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fmt.Errorf("wire: postgres: %w", err)
	}
	*closers = append(*closers, func() { _ = pgClient.Close() })

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	prices := postgres.NewPriceStore(pgClient.Pool())
	orders := postgres.NewOrderStore(pgClient.Pool())
	deps.PriceStore = prices
	deps.OrderStore = orders
	deps.Health["postgres"] = pgClient.Ping

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("wire: redis: %w", err)
	}
	*closers = append(*closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.EventBus = redis.NewEventBus(redisClient, cfg.Redis.StreamMaxLen)
	deps.Health["redis"] = redisClient.Ping

	// --- S3 archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fmt.Errorf("wire: s3: %w", err)
		}
		*closers = append(*closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), prices, orders, cfg.Archive.Prune, logger)
		deps.Health["s3"] = s3Client.Health
	}

	deps.Recorder = service.NewRecorder(service.RecorderConfig{
		Cache:         deps.PriceCache,
		Bus:           deps.EventBus,
		Prices:        deps.PriceStore,
		Orders:        deps.OrderStore,
		Archiver:      deps.Archiver,
		BatchSize:     cfg.Archive.BatchSize,
		FlushInterval: cfg.Archive.FlushInterval.Duration,
		Retention:     cfg.Archive.Retention.Duration,
	}, logger)

	return nil
}
