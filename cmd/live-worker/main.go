package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/gavel-live/internal/adapters/database"
	"github.com/floroz/gavel-live/internal/config"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
	pkgevents "github.com/floroz/gavel-live/pkg/events"
)

func main() {
	// Load environment variables (local overrides .env)
	config.LoadDotEnv()
	cfg := config.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down worker...")
		cancel()
	}()

	// 1. Initialize Postgres Connection Pool
	if cfg.DatabaseURL == "" {
		logger.Error("LIVE_DB_URL is not set")
		os.Exit(1)
	}
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Connect to RabbitMQ
	if cfg.RabbitMQURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn, pkgevents.AuctionExchange)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// 3. Relay bid.placed events committed by the live service
	relay := pkgevents.NewOutboxRelay(
		database.NewBidOutbox(nil),
		publisher,
		pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout),
		cfg.OutboxBatchSize,
		cfg.OutboxInterval,
		pkgevents.AuctionExchange,
		logger,
	)

	logger.Info("Starting Outbox Relay...")
	if runErr := relay.Run(ctx); runErr != nil {
		logger.Error("Outbox Relay failed", "error", runErr)
		if ctx.Err() == nil {
			os.Exit(1)
		}
	}

	logger.Info("Worker stopped")
}
