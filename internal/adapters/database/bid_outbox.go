package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	pkgevents "github.com/floroz/gavel-live/pkg/events"
)

const (
	appendBidPlacedSQL = `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, 'pending', $4)
	`

	// oldest first; rows claimed by another relay are skipped
	claimPendingSQL = `
		SELECT id, event_type, payload, status::text AS status, created_at, processed_at
		FROM outbox_events
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	settleEventSQL = `
		UPDATE outbox_events
		SET status = $2::text::outbox_status,
		    processed_at = CASE WHEN $2::text IN ('published', 'failed') THEN $3::timestamptz END
		WHERE id = $1
	`
)

// BidOutbox keeps bid.placed events in the outbox table. The ledger appends
// them inside the bid transaction; the relay claims and settles them.
// Every call runs on the caller's transaction.
type BidOutbox struct {
	clock clock.Clock
}

var _ pkgevents.OutboxRepository = (*BidOutbox)(nil)

// NewBidOutbox creates an outbox stamping settled events with c
func NewBidOutbox(c clock.Clock) *BidOutbox {
	if c == nil {
		c = clock.System{}
	}
	return &BidOutbox{clock: c}
}

// AppendBidPlaced records p as a pending bid.placed event. It commits or
// rolls back with tx.
func (o *BidOutbox) AppendBidPlaced(ctx context.Context, tx pgx.Tx, p *bids.Placement) error {
	payload, err := EncodeBidPlaced(p)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, appendBidPlacedSQL, uuid.New(), EventTypeBidPlaced, payload, p.Bid.CreatedAt); err != nil {
		return fmt.Errorf("failed to append %s event for bid %s: %w", EventTypeBidPlaced, p.Bid.ID, err)
	}
	return nil
}

// GetPendingEvents claims up to limit pending events for the life of tx
func (o *BidOutbox) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*pkgevents.OutboxEvent, error) {
	rows, err := tx.Query(ctx, claimPendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}
	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pkgevents.OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to read pending events: %w", err)
	}
	return events, nil
}

// UpdateEventStatus settles a claimed event. Published and failed events are
// stamped with the processing time.
func (o *BidOutbox) UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status pkgevents.OutboxStatus) error {
	tag, err := tx.Exec(ctx, settleEventSQL, eventID, string(status), o.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to mark event %s %s: %w", eventID, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox event %s not found", eventID)
	}
	return nil
}
