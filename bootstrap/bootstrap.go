package bootstrap

import (
	"context"
	"errors"
	"time"

	healthsvc "asset-ledger/internal/application/health"
	"asset-ledger/internal/application/history"
	"asset-ledger/internal/application/ingest"
	"asset-ledger/internal/application/ledger"
	"asset-ledger/internal/application/masterdata"
	"asset-ledger/internal/application/pricing"
	"asset-ledger/internal/application/reconcile"
	"asset-ledger/internal/config"
	"asset-ledger/internal/infrastructure/cache"
	"asset-ledger/internal/infrastructure/database"
	"asset-ledger/internal/infrastructure/quotes"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Container wires the stores, the quote feed and the application services. The HTTP
// server, the serverless entry point and ledgerctl all build one.
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Rdb    *redis.Client
	Quotes *quotes.Client

	Masterdata *masterdata.Service
	Ingest     *ingest.Service
	Ledger     *ledger.Service
	Enricher   *pricing.Enricher
	History    *history.Service
	Reconcile  *reconcile.Service
	Health     *healthsvc.Checker
}

// New opens the database (migrating it), the optional redis cache and the quote client.
func New(cfg *config.Config) (*Container, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	rdb, err := cache.Open(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		log.Warn().Msg("REDIS_URL not set; price cache and request stats disabled")
	}

	return Wire(cfg, db, rdb, newQuoteClient(cfg)), nil
}

func newQuoteClient(cfg *config.Config) *quotes.Client {
	return quotes.NewClient(
		quotes.WithBaseURL(cfg.QuoteBaseURL),
		quotes.WithTimeout(cfg.QuoteTimeout),
		quotes.WithRateLimit(cfg.QuoteRateLimit),
		quotes.WithBatchSize(cfg.QuoteBatchSize),
		quotes.WithWorkers(cfg.FetchWorkers),
		quotes.WithMaxRetries(cfg.FetchMaxRetries),
		quotes.WithFXPair(cfg.FXPair),
		quotes.WithHomeSuffix(cfg.HomeMarketSuffix),
	)
}

// Wire builds the services over already-open stores. rdb may be nil; feed may be nil to
// value holdings from cost only.
func Wire(cfg *config.Config, db *gorm.DB, rdb *redis.Client, feed *quotes.Client) *Container {
	c := &Container{Config: cfg, DB: db, Rdb: rdb, Quotes: feed}

	c.Enricher = &pricing.Enricher{}
	if feed != nil {
		c.Enricher.Feed = feed
	}
	if rdb != nil {
		c.Enricher.Cache = cache.NewPriceCache(rdb, cfg.PriceCacheTTL)
	}

	c.Masterdata = &masterdata.Service{DB: db, DefaultPortfolio: cfg.DefaultPortfolio}
	c.Ingest = &ingest.Service{DB: db, DefaultPortfolio: cfg.DefaultPortfolio}
	c.Ledger = &ledger.Service{DB: db, DefaultPortfolio: cfg.DefaultPortfolio}
	c.Reconcile = &reconcile.Service{Ingest: c.Ingest, Ledger: c.Ledger}
	c.History = &history.Service{
		DB:               db,
		Enricher:         c.Enricher,
		DefaultPortfolio: cfg.DefaultPortfolio,
		Location:         cfg.Location(),
		MarketCloseHour:  cfg.MarketCloseHour,
	}
	c.Health = &healthsvc.Checker{DB: db, Rdb: rdb, Started: time.Now()}
	if feed != nil {
		c.Health.Feeds = map[string]healthsvc.Pinger{"quotes": feed}
	}
	return c
}

// Ping verifies the database and, when configured, redis.
func (c *Container) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if c.Rdb != nil {
		return c.Rdb.Ping(ctx).Err()
	}
	return nil
}

// Close releases the database and redis connections.
func (c *Container) Close() {
	if c.Rdb != nil {
		_ = c.Rdb.Close()
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
