package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/gavel-live/internal/adapters/cache"
	"github.com/floroz/gavel-live/internal/adapters/database"
	"github.com/floroz/gavel-live/internal/adapters/memory"
	"github.com/floroz/gavel-live/internal/config"
	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/internal/domain/items"
	"github.com/floroz/gavel-live/migrations"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
)

// storage is the set of ports the service runs on
type storage struct {
	ledger  bids.Ledger
	items   items.Repository
	history bids.HistoryRepository

	// set only with a database
	pool      *pgxpool.Pool
	txManager *pkgdb.PostgresTransactionManager
	outbox    *database.BidOutbox
}

func (s *storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// openStorage connects to PostgreSQL when a database URL is configured and
// falls back to the in-memory ledger seeded with the demo catalog otherwise.
func openStorage(ctx context.Context, cfg config.Config, c clock.Clock, logger *slog.Logger) (*storage, error) {
	if cfg.DatabaseURL == "" {
		ledger := memory.NewLedger(c)
		catalog := memory.DemoCatalog(c.Now())
		ledger.Seed(catalog...)
		logger.Warn("LIVE_DB_URL is not set, using the in-memory ledger", "items", len(catalog))
		return &storage{ledger: ledger, items: ledger, history: ledger}, nil
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	logger.Info("Postgres Connected")

	if err := pkgdb.Migrate(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, err
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	outbox := database.NewBidOutbox(c)
	return &storage{
		ledger:    database.NewPostgresLedger(txManager, outbox, c),
		items:     database.NewPostgresItemRepository(pool),
		history:   database.NewPostgresHistoryRepository(pool),
		pool:      pool,
		txManager: txManager,
		outbox:    outbox,
	}, nil
}

// openCache returns nil when no Redis URL is configured or Redis cannot be
// reached; the catalog then reads straight from storage.
func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (*cache.RedisItemCache, *redis.Client) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opts := &redis.Options{Addr: cfg.RedisURL}
	if strings.Contains(cfg.RedisURL, "://") {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("Invalid REDIS_URL, running without cache", "error", err)
			return nil, nil
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis connection failed, running without cache", "error", err)
		_ = rdb.Close()
		return nil, nil
	}
	logger.Info("Redis Connected")
	return cache.NewRedisItemCache(rdb, cache.DefaultTTL), rdb
}
