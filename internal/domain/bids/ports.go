package bids

import (
	"context"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/domain/identity"
)

// Ledger is the authoritative store of item prices. AttemptBid must run the
// check and the update of one item under an exclusive hold on that item, so
// that no other attempt on the same item interleaves between them. Attempts on
// different items must not wait on each other.
type Ledger interface {
	// AttemptBid checks the deadline and current bid of the item and, on
	// success, records the bid and raises the current bid atomically.
	// A rejected attempt leaves the item untouched.
	AttemptBid(ctx context.Context, cmd PlaceBidCommand) (*Placement, error)
}

// HistoryRepository lists the bids placed by a user
type HistoryRepository interface {
	// GetBidsByUserID returns the user's bids, newest first
	GetBidsByUserID(ctx context.Context, userID uuid.UUID) ([]*HistoryEntry, error)
}

// Bidder is the connection a bid attempt came from.
type Bidder interface {
	SessionID() uuid.UUID
	Principal() identity.Principal
}

// Dispatcher receives bid outcomes. Implementations must not block the caller
// on slow consumers.
type Dispatcher interface {
	// OnBidAccepted is called once per accepted bid
	OnBidAccepted(origin Bidder, placement *Placement)

	// OnBidRejected is called once per rejected attempt
	OnBidRejected(origin Bidder, err error)
}

// MultiDispatcher fans outcomes out to several dispatchers in order.
type MultiDispatcher []Dispatcher

func (m MultiDispatcher) OnBidAccepted(origin Bidder, placement *Placement) {
	for _, d := range m {
		d.OnBidAccepted(origin, placement)
	}
}

func (m MultiDispatcher) OnBidRejected(origin Bidder, err error) {
	for _, d := range m {
		d.OnBidRejected(origin, err)
	}
}
