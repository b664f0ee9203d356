package items

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the read side of item persistence
type Repository interface {
	// GetItemByID retrieves an item by its ID
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// ListActiveItems retrieves items whose auction is still open at now
	ListActiveItems(ctx context.Context, now time.Time, limit, offset int) ([]*Item, error)
}

// Cache holds item snapshots in front of the Repository
type Cache interface {
	// Get returns ErrCacheMiss when the item is not cached
	Get(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// Set stores the snapshot unless a newer version is already cached
	Set(ctx context.Context, item *Item) error
}
