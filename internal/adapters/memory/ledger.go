// Package memory implements the auction ledger in process memory. Each item
// lives in its own slot guarded by its own mutex; the slot table lock is only
// held to find a slot, never while a bid is decided.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/internal/domain/items"
)

type bidRecord struct {
	bid bids.Bid
	seq uint64
}

type slot struct {
	mu   sync.Mutex
	item items.Item
	bids []bidRecord
}

// Ledger is an in-memory bids.Ledger. It also serves the catalog and history
// reads.
type Ledger struct {
	mu    sync.RWMutex
	slots map[uuid.UUID]*slot
	clock clock.Clock
	seq   atomic.Uint64
}

var (
	_ bids.Ledger            = (*Ledger)(nil)
	_ bids.HistoryRepository = (*Ledger)(nil)
	_ items.Repository       = (*Ledger)(nil)
)

// NewLedger creates an empty ledger
func NewLedger(c clock.Clock) *Ledger {
	if c == nil {
		c = clock.System{}
	}
	return &Ledger{
		slots: make(map[uuid.UUID]*slot),
		clock: c,
	}
}

// Seed adds items to the catalog, replacing items with the same id. An item
// whose current bid is below its start price opens at the start price.
func (l *Ledger) Seed(list ...items.Item) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range list {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.CurrentBid.LessThan(item.StartPrice) {
			item.CurrentBid = item.StartPrice
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		l.slots[item.ID] = &slot{item: item}
	}
}

func (l *Ledger) slot(itemID uuid.UUID) *slot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slots[itemID]
}

func (l *Ledger) snapshot() []*slot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*slot, 0, len(l.slots))
	for _, s := range l.slots {
		out = append(out, s)
	}
	return out
}

// AttemptBid decides a bid under the item's own mutex. It has no cancellation
// path: once the hold is taken the attempt runs to an outcome.
func (l *Ledger) AttemptBid(_ context.Context, cmd bids.PlaceBidCommand) (*bids.Placement, error) {
	s := l.slot(cmd.ItemID)
	if s == nil {
		return nil, bids.ErrItemNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.clock.Now()
	if s.item.HasEnded(now) {
		return nil, bids.ErrAuctionEnded
	}
	if cmd.Amount.LessThanOrEqual(s.item.CurrentBid) {
		return nil, &bids.BidTooLowError{Current: s.item.CurrentBid}
	}

	bid := bids.Bid{
		ID:        uuid.New(),
		ItemID:    cmd.ItemID,
		UserID:    cmd.UserID,
		Amount:    cmd.Amount,
		CreatedAt: now,
	}

	s.item.CurrentBid = cmd.Amount
	s.item.LastBidderID = cmd.UserID
	s.item.UpdatedAt = now
	s.item.Version++
	s.bids = append(s.bids, bidRecord{bid: bid, seq: l.seq.Add(1)})

	return &bids.Placement{Item: s.item, Bid: bid}, nil
}

// GetItemByID returns a snapshot of the item
func (l *Ledger) GetItemByID(_ context.Context, itemID uuid.UUID) (*items.Item, error) {
	s := l.slot(itemID)
	if s == nil {
		return nil, items.ErrItemNotFound
	}
	s.mu.Lock()
	item := s.item
	s.mu.Unlock()
	return &item, nil
}

// ListActiveItems returns open auctions, soonest ending first
func (l *Ledger) ListActiveItems(_ context.Context, now time.Time, limit, offset int) ([]*items.Item, error) {
	var active []*items.Item
	for _, s := range l.snapshot() {
		s.mu.Lock()
		item := s.item
		s.mu.Unlock()
		if !item.HasEnded(now) {
			active = append(active, &item)
		}
	}

	slices.SortFunc(active, func(a, b *items.Item) int {
		if c := a.EndAt.Compare(b.EndAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	if offset >= len(active) {
		return []*items.Item{}, nil
	}
	active = active[offset:]
	if limit > 0 && limit < len(active) {
		active = active[:limit]
	}
	return active, nil
}

// GetBidsByUserID returns the user's bids across all items, newest first
func (l *Ledger) GetBidsByUserID(_ context.Context, userID uuid.UUID) ([]*bids.HistoryEntry, error) {
	type entry struct {
		*bids.HistoryEntry
		seq uint64
	}

	var found []entry
	for _, s := range l.snapshot() {
		s.mu.Lock()
		for _, rec := range s.bids {
			if rec.bid.UserID == userID {
				found = append(found, entry{
					HistoryEntry: &bids.HistoryEntry{Bid: rec.bid, Item: s.item},
					seq:          rec.seq,
				})
			}
		}
		s.mu.Unlock()
	}

	slices.SortFunc(found, func(a, b entry) int {
		return cmp.Compare(b.seq, a.seq)
	})

	out := make([]*bids.HistoryEntry, len(found))
	for i, e := range found {
		out[i] = e.HistoryEntry
	}
	return out, nil
}

// BidsForItem returns the accepted bids of an item in acceptance order
func (l *Ledger) BidsForItem(itemID uuid.UUID) []bids.Bid {
	s := l.slot(itemID)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bids.Bid, len(s.bids))
	for i, rec := range s.bids {
		out[i] = rec.bid
	}
	return out
}
