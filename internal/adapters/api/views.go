// Package api exposes the catalog, clock and bid history over REST and
// ConnectRPC.
package api

import (
	"time"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/items"
)

// ItemView is the JSON form of an item. Amounts are decimal strings with two
// fractional digits.
type ItemView struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	StartingPrice  string    `json:"startingPrice"`
	CurrentBid     string    `json:"currentBid"`
	AuctionEndTime time.Time `json:"auctionEndTime"`
	LastBidderID   *string   `json:"lastBidderId"`
	Version        uint64    `json:"version"`
}

func newItemView(item *items.Item) ItemView {
	v := ItemView{
		ID:             item.ID.String(),
		Title:          item.Title,
		StartingPrice:  bids.FormatAmount(item.StartPrice),
		CurrentBid:     bids.FormatAmount(item.CurrentBid),
		AuctionEndTime: item.EndAt,
		Version:        item.Version,
	}
	if item.HasBidder() {
		id := item.LastBidderID.String()
		v.LastBidderID = &id
	}
	return v
}

// BidItemView is the item summary attached to a history entry
type BidItemView struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CurrentBid     string    `json:"currentBid"`
	StartingPrice  string    `json:"startingPrice"`
	AuctionEndTime time.Time `json:"auctionEndTime"`
}

// BidView is one entry of a user's bid history
type BidView struct {
	ID        string      `json:"id"`
	Amount    string      `json:"amount"`
	CreatedAt time.Time   `json:"createdAt"`
	Item      BidItemView `json:"item"`
}

func newBidView(entry *bids.HistoryEntry) BidView {
	return BidView{
		ID:        entry.Bid.ID.String(),
		Amount:    bids.FormatAmount(entry.Bid.Amount),
		CreatedAt: entry.Bid.CreatedAt,
		Item: BidItemView{
			ID:             entry.Item.ID.String(),
			Title:          entry.Item.Title,
			CurrentBid:     bids.FormatAmount(entry.Item.CurrentBid),
			StartingPrice:  bids.FormatAmount(entry.Item.StartPrice),
			AuctionEndTime: entry.Item.EndAt,
		},
	}
}

// MyBidsResponse answers GET /api/bids/my
type MyBidsResponse struct {
	Bids  []BidView `json:"bids"`
	Count int       `json:"count"`
}

// ServerTimeResponse answers GET /api/items/server-time
type ServerTimeResponse struct {
	ServerTime string `json:"serverTime"`
	Timestamp  int64  `json:"timestamp"`
}

// HealthResponse answers GET /health
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// ErrorResponse is the body of every failed REST call
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
