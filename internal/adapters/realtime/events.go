// Package realtime carries bid attempts and bid outcomes over WebSocket
// connections.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/internal/domain/items"
)

// Inbound events
const (
	EventBidPlaced = "BID_PLACED"
	EventSyncTime  = "SYNC_TIME"
)

// Outbound events
const (
	EventUpdateBid  = "UPDATE_BID"
	EventBidSuccess = "BID_SUCCESS"
	EventBidError   = "BID_ERROR"
	EventServerTime = "SERVER_TIME"
)

const bidSuccessMessage = "Your bid has been placed successfully"

// Envelope is the frame of every message in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// BidPlacedPayload is a bid attempt. Amount may be a JSON number or a string.
type BidPlacedPayload struct {
	ItemID string          `json:"itemId"`
	Amount json.RawMessage `json:"amount"`
}

// RawAmount returns the amount text exactly as sent, so that numbers are
// never routed through float64.
func (p BidPlacedPayload) RawAmount() string {
	raw := strings.TrimSpace(string(p.Amount))
	if raw == "" || raw == "null" {
		return ""
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(p.Amount, &s); err != nil {
			return ""
		}
		return s
	}
	return raw
}

// ItemPayload is the public view of an item
type ItemPayload struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	StartingPrice  string    `json:"startingPrice"`
	CurrentBid     string    `json:"currentBid"`
	LastBidderID   *string   `json:"lastBidderId"`
	AuctionEndTime time.Time `json:"auctionEndTime"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Version        uint64    `json:"version"`
}

func newItemPayload(item items.Item) ItemPayload {
	p := ItemPayload{
		ID:             item.ID.String(),
		Title:          item.Title,
		StartingPrice:  bids.FormatAmount(item.StartPrice),
		CurrentBid:     bids.FormatAmount(item.CurrentBid),
		AuctionEndTime: item.EndAt,
		UpdatedAt:      item.UpdatedAt,
		Version:        item.Version,
	}
	if item.HasBidder() {
		id := item.LastBidderID.String()
		p.LastBidderID = &id
	}
	return p
}

// UpdateBidPayload is broadcast to every connection on an accepted bid
type UpdateBidPayload struct {
	ItemID         string    `json:"itemId"`
	CurrentBid     string    `json:"currentBid"`
	BidderID       string    `json:"bidderId"`
	AuctionEndTime time.Time `json:"auctionEndTime"`
	Timestamp      time.Time `json:"timestamp"`
}

// BidSuccessPayload acknowledges an accepted bid to its bidder
type BidSuccessPayload struct {
	Message string      `json:"message"`
	Item    ItemPayload `json:"item"`
}

// BidErrorPayload reports a rejected attempt to its bidder
type BidErrorPayload struct {
	Kind    bids.Kind `json:"kind"`
	Error   string    `json:"error"`
	Message string    `json:"message"`
}

// ServerTimePayload answers SYNC_TIME
type ServerTimePayload struct {
	ServerTime time.Time `json:"serverTime"`
	Timestamp  int64     `json:"timestamp"`
}

var errorTitles = map[bids.Kind]string{
	bids.KindUnauthenticated: "Authentication required",
	bids.KindInvalidInput:    "Invalid input",
	bids.KindInvalidAmount:   "Invalid amount",
	bids.KindItemNotFound:    "Item not found",
	bids.KindAuctionEnded:    "Auction ended",
	bids.KindBidTooLow:       "Bid too low",
	bids.KindUnavailable:     "Internal server error",
}

func newBidErrorPayload(err error) BidErrorPayload {
	kind := bids.KindOf(err)
	return BidErrorPayload{
		Kind:    kind,
		Error:   errorTitles[kind],
		Message: bids.PublicMessage(err),
	}
}

func newServerTimePayload(r clock.Reading) ServerTimePayload {
	return ServerTimePayload{ServerTime: r.ServerTime, Timestamp: r.Timestamp}
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	msg, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}
	return msg, nil
}
