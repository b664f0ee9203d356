package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/items"
)

const refreshTimeout = 2 * time.Second

// Refresher writes accepted snapshots through to the cache. It implements
// bids.Dispatcher; writes run on their own goroutine and never hold up the
// bid that produced them.
type Refresher struct {
	cache  items.Cache
	logger *slog.Logger
}

var _ bids.Dispatcher = (*Refresher)(nil)

// NewRefresher creates a new cache refresher
func NewRefresher(cache items.Cache, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{cache: cache, logger: logger}
}

// OnBidAccepted refreshes the item's snapshot. Out-of-order writes are
// discarded by the cache's version check.
func (r *Refresher) OnBidAccepted(_ bids.Bidder, placement *bids.Placement) {
	item := placement.Item
	go r.refresh(&item)
}

// OnBidRejected does nothing; a rejection changes no item.
func (r *Refresher) OnBidRejected(bids.Bidder, error) {}

func (r *Refresher) refresh(item *items.Item) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := r.cache.Set(ctx, item); err != nil {
		r.logger.Warn("Item cache refresh failed", "item_id", item.ID, "version", item.Version, "error", err)
	}
}
