package bids

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/gavel-live/internal/domain/items"
)

// Bid represents an accepted auction bid. Bids are never modified.
type Bid struct {
	ID        uuid.UUID       `db:"id"`
	ItemID    uuid.UUID       `db:"item_id"`
	UserID    uuid.UUID       `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt time.Time       `db:"created_at"`
}

// PlaceBidCommand is a validated bid attempt handed to the Ledger
type PlaceBidCommand struct {
	ItemID uuid.UUID
	UserID uuid.UUID
	Amount decimal.Decimal
}

// Placement is the outcome of an accepted bid: the item snapshot right after
// the bid, and the bid itself.
type Placement struct {
	Item items.Item
	Bid  Bid
}

// HistoryEntry is one of a user's bids with a summary of its item
type HistoryEntry struct {
	Bid  Bid
	Item items.Item
}
