package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/items"
)

type recordingCache struct {
	mu   sync.Mutex
	set  []*items.Item
	err  error
	done chan struct{}
}

func newRecordingCache(err error) *recordingCache {
	return &recordingCache{err: err, done: make(chan struct{}, 8)}
}

func (c *recordingCache) Get(context.Context, uuid.UUID) (*items.Item, error) {
	return nil, items.ErrCacheMiss
}

func (c *recordingCache) Set(_ context.Context, item *items.Item) error {
	c.mu.Lock()
	c.set = append(c.set, item)
	c.mu.Unlock()
	c.done <- struct{}{}
	return c.err
}

func TestRefresher_OnBidAccepted(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "write succeeds"},
		{name: "write failure is only logged", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRecordingCache(tt.err)
			r := NewRefresher(c, nil)

			placement := &bids.Placement{
				Item: items.Item{ID: uuid.New(), CurrentBid: decimal.NewFromInt(42), Version: 3},
			}
			r.OnBidAccepted(nil, placement)

			select {
			case <-c.done:
			case <-time.After(time.Second):
				t.Fatal("cache was not refreshed")
			}

			c.mu.Lock()
			defer c.mu.Unlock()
			require.Len(t, c.set, 1)
			assert.Equal(t, placement.Item.ID, c.set[0].ID)
			assert.Equal(t, uint64(3), c.set[0].Version)
			assert.NotSame(t, &placement.Item, c.set[0], "the refresher works on its own copy")
		})
	}
}

func TestRefresher_OnBidRejected(t *testing.T) {
	c := newRecordingCache(nil)
	NewRefresher(c, nil).OnBidRejected(nil, bids.ErrAuctionEnded)

	select {
	case <-c.done:
		t.Fatal("a rejection must not touch the cache")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	item := &items.Item{
		ID:           uuid.New(),
		Title:        "Vintage Guitar",
		StartPrice:   decimal.RequireFromString("100.00"),
		CurrentBid:   decimal.RequireFromString("150.50"),
		LastBidderID: uuid.New(),
		EndAt:        time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Version:      9,
	}

	got, err := newSnapshot(item).item()
	require.NoError(t, err)
	assert.True(t, item.CurrentBid.Equal(got.CurrentBid))
	assert.True(t, item.StartPrice.Equal(got.StartPrice))
	assert.Equal(t, item.LastBidderID, got.LastBidderID)
	assert.Equal(t, item.Version, got.Version)
	assert.True(t, item.EndAt.Equal(got.EndAt))

	_, err = snapshot{StartPrice: "abc", CurrentBid: "1"}.item()
	assert.Error(t, err)
}
