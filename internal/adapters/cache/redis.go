// Package cache keeps item snapshots in Redis in front of the catalog
// repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/floroz/gavel-live/internal/domain/items"
)

// DefaultTTL bounds how long a snapshot outlives its last refresh
const DefaultTTL = 5 * time.Minute

const keyPrefix = "item:"

// setIfNewer writes ARGV[1] unless the cached snapshot already has a higher
// version. Equal versions are rewritten to extend the TTL.
var setIfNewer = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	local ok, decoded = pcall(cjson.decode, current)
	local cached = ok and type(decoded) == "table" and tonumber(decoded["version"]) or nil
	if cached and cached > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// snapshot is the cached form of an item. Amounts are strings so no value
// passes through a float.
type snapshot struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	StartPrice   string    `json:"start_price"`
	CurrentBid   string    `json:"current_bid"`
	LastBidderID uuid.UUID `json:"last_bidder_id"`
	EndAt        time.Time `json:"end_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      uint64    `json:"version"`
}

// RedisItemCache implements items.Cache
type RedisItemCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ items.Cache = (*RedisItemCache)(nil)

// NewRedisItemCache creates a new Redis item cache. A non-positive ttl means
// DefaultTTL.
func NewRedisItemCache(client redis.UniversalClient, ttl time.Duration) *RedisItemCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisItemCache{client: client, ttl: ttl}
}

func key(itemID uuid.UUID) string {
	return keyPrefix + itemID.String()
}

// Get returns items.ErrCacheMiss when the item is not cached
func (c *RedisItemCache) Get(ctx context.Context, itemID uuid.UUID) (*items.Item, error) {
	raw, err := c.client.Get(ctx, key(itemID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, items.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read item %s: %w", itemID, err)
	}

	var s snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode item %s: %w", itemID, err)
	}
	return s.item()
}

// Set stores the snapshot unless a newer version is already cached
func (c *RedisItemCache) Set(ctx context.Context, item *items.Item) error {
	raw, err := json.Marshal(newSnapshot(item))
	if err != nil {
		return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
	}

	err = setIfNewer.Run(ctx, c.client,
		[]string{key(item.ID)},
		raw, item.Version, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write item %s: %w", item.ID, err)
	}
	return nil
}

func newSnapshot(item *items.Item) snapshot {
	return snapshot{
		ID:           item.ID,
		Title:        item.Title,
		StartPrice:   item.StartPrice.String(),
		CurrentBid:   item.CurrentBid.String(),
		LastBidderID: item.LastBidderID,
		EndAt:        item.EndAt,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
		Version:      item.Version,
	}
}

func (s snapshot) item() (*items.Item, error) {
	startPrice, err := decimal.NewFromString(s.StartPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid start price %q: %w", s.StartPrice, err)
	}
	currentBid, err := decimal.NewFromString(s.CurrentBid)
	if err != nil {
		return nil, fmt.Errorf("invalid current bid %q: %w", s.CurrentBid, err)
	}
	return &items.Item{
		ID:           s.ID,
		Title:        s.Title,
		StartPrice:   startPrice,
		CurrentBid:   currentBid,
		LastBidderID: s.LastBidderID,
		EndAt:        s.EndAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Version:      s.Version,
	}, nil
}
