package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/gavel-live/internal/adapters/api"
	"github.com/floroz/gavel-live/internal/adapters/cache"
	"github.com/floroz/gavel-live/internal/adapters/realtime"
	"github.com/floroz/gavel-live/internal/config"
	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/internal/domain/identity"
	"github.com/floroz/gavel-live/internal/domain/items"
	pkgevents "github.com/floroz/gavel-live/pkg/events"
)

func main() {
	// Load environment variables (local overrides .env)
	config.LoadDotEnv()
	cfg := config.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Live service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Live service stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	signer, err := cfg.TokenSigner()
	if err != nil {
		return err
	}

	c := clock.System{}
	clockService := clock.NewService(c)

	// 1. Storage: PostgreSQL when configured, in-memory otherwise
	store, err := openStorage(ctx, cfg, c, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. Optional catalog cache
	var itemCache items.Cache
	redisCache, rdb := openCache(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
		itemCache = redisCache
	}

	// 3. Real-time fan-out
	registry := realtime.NewRegistry()
	dispatchers := bids.MultiDispatcher{realtime.NewDispatcher(registry, c, logger)}
	if redisCache != nil {
		dispatchers = append(dispatchers, cache.NewRefresher(redisCache, logger))
	}

	// 4. Domain services
	arbitrator := bids.NewArbitrator(store.ledger, dispatchers, c, logger)
	itemService := items.NewService(store.items, itemCache, c, logger)

	// 5. HTTP surface
	live := realtime.NewHandler(
		identity.NewResolver(signer, logger),
		registry,
		arbitrator,
		clockService,
		logger,
		realtime.HandlerConfig{SendBuffer: cfg.SendBuffer, AllowedOrigins: cfg.AllowedOrigins},
	)
	router := api.NewRouter(api.RouterConfig{
		REST:           api.NewHandler(itemService, store.history, clockService, logger),
		Clock:          api.NewClockServiceHandler(clockService),
		History:        api.NewBidHistoryServiceHandler(store.history, logger),
		Live:           live,
		Validator:      signer,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h2c.NewHandler(router, &http2.Server{}),
	}

	// 6. Outbox relay, when the service owns a database and a broker
	var relay *pkgevents.OutboxRelay
	if store.pool != nil && cfg.RabbitMQURL != "" {
		amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("Failed to connect to RabbitMQ, events stay in the outbox", "error", err)
		} else {
			defer amqpConn.Close()
			logger.Info("RabbitMQ Connected")

			publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn, pkgevents.AuctionExchange)
			if err != nil {
				return err
			}
			defer publisher.Close()

			relay = pkgevents.NewOutboxRelay(
				store.outbox,
				publisher,
				store.txManager,
				cfg.OutboxBatchSize,
				cfg.OutboxInterval,
				pkgevents.AuctionExchange,
				logger,
			)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if relay != nil {
		g.Go(func() error {
			logger.Info("Starting Outbox Relay...")
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting Live Service", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down live service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// hijacked websocket connections are not tracked by Shutdown
		registry.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
