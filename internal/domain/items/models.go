package items

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item represents an auction item
type Item struct {
	ID           uuid.UUID
	Title        string
	StartPrice   decimal.Decimal
	CurrentBid   decimal.Decimal
	LastBidderID uuid.UUID // uuid.Nil until the first accepted bid
	EndAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Version counts accepted bids. It increases by exactly one per
	// accepted bid and orders the item's state updates.
	Version uint64
}

// HasEnded reports whether the auction is closed at now. The deadline itself
// is already closed.
func (i *Item) HasEnded(now time.Time) bool {
	return !now.Before(i.EndAt)
}

// HasBidder reports whether any bid has been accepted.
func (i *Item) HasBidder() bool {
	return i.LastBidderID != uuid.Nil
}
