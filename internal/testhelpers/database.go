// Package testhelpers starts containerized dependencies for integration tests.
package testhelpers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/floroz/gavel-live/migrations"
	"github.com/floroz/gavel-live/pkg/database"
)

// TestDatabase represents a test database with connection pool and cleanup function
type TestDatabase struct {
	Pool    *pgxpool.Pool
	ConnStr string
	cleanup func()
}

// Close cleans up the test database and terminates the container
func (db *TestDatabase) Close() {
	if db.cleanup != nil {
		db.cleanup()
	}
}

// NewTestDatabase starts a PostgreSQL container, applies the embedded
// migrations and returns a ready-to-use pool
func NewTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start postgres container")

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "Failed to create connection pool")

	err = database.Migrate(ctx, pool, migrations.FS, slog.New(slog.DiscardHandler))
	require.NoError(t, err, "Failed to run migrations")

	cleanup := func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return &TestDatabase{
		Pool:    pool,
		ConnStr: connStr,
		cleanup: cleanup,
	}
}

// CleanDatabase truncates all tables to reset state between tests
func CleanDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	queries := []string{
		"TRUNCATE TABLE bids CASCADE",
		"TRUNCATE TABLE items CASCADE",
		"TRUNCATE TABLE outbox_events CASCADE",
	}

	for _, query := range queries {
		_, err := pool.Exec(ctx, query)
		require.NoError(t, err, "Failed to truncate table: %s", query)
	}
}
