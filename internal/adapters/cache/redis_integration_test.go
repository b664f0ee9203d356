//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/gavel-live/internal/adapters/cache"
	"github.com/floroz/gavel-live/internal/domain/items"
	"github.com/floroz/gavel-live/internal/testhelpers"
)

func TestRedisItemCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: testhelpers.NewRedis(t)})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	c := cache.NewRedisItemCache(client, time.Minute)
	itemID := uuid.New()

	_, err := c.Get(ctx, itemID)
	assert.ErrorIs(t, err, items.ErrCacheMiss)

	item := &items.Item{
		ID:         itemID,
		Title:      "Vintage Guitar",
		StartPrice: decimal.RequireFromString("100"),
		CurrentBid: decimal.RequireFromString("120.50"),
		EndAt:      time.Now().Add(time.Hour).UTC(),
		Version:    2,
	}
	require.NoError(t, c.Set(ctx, item))

	got, err := c.Get(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "120.5", got.CurrentBid.String())
	assert.Equal(t, uint64(2), got.Version)

	t.Run("older version does not overwrite", func(t *testing.T) {
		stale := *item
		stale.CurrentBid = decimal.NewFromInt(110)
		stale.Version = 1
		require.NoError(t, c.Set(ctx, &stale))

		got, err := c.Get(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), got.Version)
		assert.Equal(t, "120.5", got.CurrentBid.String())
	})

	t.Run("newer version overwrites", func(t *testing.T) {
		fresh := *item
		fresh.CurrentBid = decimal.NewFromInt(130)
		fresh.Version = 3
		require.NoError(t, c.Set(ctx, &fresh))

		got, err := c.Get(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), got.Version)
		assert.Equal(t, "130", got.CurrentBid.String())
	})

	t.Run("entries expire", func(t *testing.T) {
		ttl, err := client.PTTL(ctx, "item:"+itemID.String()).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})
}
