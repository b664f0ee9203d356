package database

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/gavel-live/internal/domain/bids"
)

// EventTypeBidPlaced is the outbox event type and routing key of accepted bids
const EventTypeBidPlaced = "bid.placed"

// BidPlacedEvent is the content of a bid.placed message
type BidPlacedEvent struct {
	BidID     uuid.UUID
	ItemID    uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Version   uint64
	Timestamp time.Time
}

// EncodeBidPlaced serializes an accepted bid as a protobuf Struct. Amounts are
// strings to keep them exact.
func EncodeBidPlaced(p *bids.Placement) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"bid_id":    p.Bid.ID.String(),
		"item_id":   p.Bid.ItemID.String(),
		"user_id":   p.Bid.UserID.String(),
		"amount":    bids.FormatAmount(p.Bid.Amount),
		"version":   strconv.FormatUint(p.Item.Version, 10),
		"timestamp": p.Bid.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event: %w", err)
	}
	payload, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// DecodeBidPlaced parses a payload written by EncodeBidPlaced
func DecodeBidPlaced(payload []byte) (*BidPlacedEvent, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	fields := msg.GetFields()
	str := func(key string) string { return fields[key].GetStringValue() }

	var (
		ev  BidPlacedEvent
		err error
	)
	if ev.BidID, err = uuid.Parse(str("bid_id")); err != nil {
		return nil, fmt.Errorf("invalid bid_id: %w", err)
	}
	if ev.ItemID, err = uuid.Parse(str("item_id")); err != nil {
		return nil, fmt.Errorf("invalid item_id: %w", err)
	}
	if ev.UserID, err = uuid.Parse(str("user_id")); err != nil {
		return nil, fmt.Errorf("invalid user_id: %w", err)
	}
	if ev.Amount, err = decimal.NewFromString(str("amount")); err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	if ev.Version, err = strconv.ParseUint(str("version"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid version: %w", err)
	}
	if ev.Timestamp, err = time.Parse(time.RFC3339Nano, str("timestamp")); err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	return &ev, nil
}
