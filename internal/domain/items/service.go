package items

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/floroz/gavel-live/internal/domain/clock"
)

// Service errors
var (
	ErrItemNotFound = errors.New("item not found")
	ErrCacheMiss    = errors.New("item not cached")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListItemsQuery represents pagination parameters for listing items
type ListItemsQuery struct {
	Limit  int
	Offset int
}

// Service is the catalog read path. It never mutates an item; price changes
// only happen through the bid ledger.
type Service struct {
	repo   Repository
	cache  Cache
	clock  clock.Clock
	logger *slog.Logger
	group  singleflight.Group
}

// NewService creates a new item service. cache may be nil.
func NewService(repo Repository, cache Cache, c clock.Clock, logger *slog.Logger) *Service {
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		clock:  c,
		logger: logger,
	}
}

// GetItem retrieves an item by ID, reading through the cache when one is set.
// Concurrent misses for the same item share one repository read.
func (s *Service) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	if s.cache != nil {
		item, err := s.cache.Get(ctx, itemID)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("Item cache read failed", "item_id", itemID, "error", err)
		}
	}

	v, err, _ := s.group.Do(itemID.String(), func() (any, error) {
		item, err := s.repo.GetItemByID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if setErr := s.cache.Set(ctx, item); setErr != nil {
				s.logger.Warn("Item cache write failed", "item_id", itemID, "error", setErr)
			}
		}
		return item, nil
	})
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	item := *v.(*Item)
	return &item, nil
}

// ListActiveItems retrieves items whose auction has not ended yet
func (s *Service) ListActiveItems(ctx context.Context, query ListItemsQuery) ([]*Item, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := max(query.Offset, 0)

	list, err := s.repo.ListActiveItems(ctx, s.clock.Now(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return list, nil
}
