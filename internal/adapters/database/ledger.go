package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/internal/domain/items"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
)

// OutboxWriter records an accepted bid's event inside the bid transaction
type OutboxWriter interface {
	AppendBidPlaced(ctx context.Context, tx pgx.Tx, p *bids.Placement) error
}

// PostgresLedger implements bids.Ledger. The exclusive hold on an item is the
// row lock taken by SELECT ... FOR UPDATE; it lasts until the transaction
// ends and never covers another item's row.
type PostgresLedger struct {
	txManager pkgdb.TransactionManager
	outbox    OutboxWriter
	clock     clock.Clock
}

var _ bids.Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger creates a new PostgreSQL ledger. outbox may be nil, in
// which case accepted bids produce no events.
func NewPostgresLedger(txManager pkgdb.TransactionManager, outbox OutboxWriter, c clock.Clock) *PostgresLedger {
	if c == nil {
		c = clock.System{}
	}
	return &PostgresLedger{
		txManager: txManager,
		outbox:    outbox,
		clock:     c,
	}
}

// AttemptBid checks and applies a bid in one transaction. The bid row, the
// item update and the bid.placed outbox event commit together or not at all.
func (l *PostgresLedger) AttemptBid(ctx context.Context, cmd bids.PlaceBidCommand) (*bids.Placement, error) {
	tx, err := l.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	item, err := getItem(ctx, tx, cmd.ItemID, true)
	if err != nil {
		if errors.Is(err, items.ErrItemNotFound) {
			return nil, bids.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to lock item: %w", err)
	}

	now := l.clock.Now()
	if item.HasEnded(now) {
		return nil, bids.ErrAuctionEnded
	}
	if cmd.Amount.LessThanOrEqual(item.CurrentBid) {
		return nil, &bids.BidTooLowError{Current: item.CurrentBid}
	}

	bid := bids.Bid{
		ID:        uuid.New(),
		ItemID:    cmd.ItemID,
		UserID:    cmd.UserID,
		Amount:    cmd.Amount,
		CreatedAt: now,
	}

	if err := saveBid(ctx, tx, &bid); err != nil {
		return nil, err
	}

	version, err := raiseCurrentBid(ctx, tx, &bid)
	if err != nil {
		return nil, err
	}

	item.CurrentBid = bid.Amount
	item.LastBidderID = bid.UserID
	item.UpdatedAt = now
	item.Version = version
	placement := &bids.Placement{Item: *item, Bid: bid}

	if l.outbox != nil {
		if err := l.outbox.AppendBidPlaced(ctx, tx, placement); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return placement, nil
}

func saveBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, item_id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ItemID,
		bid.UserID,
		bid.Amount.String(),
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func raiseCurrentBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) (uint64, error) {
	query := `
		UPDATE items
		SET current_bid = $1::numeric, last_bidder_id = $2, version = version + 1, updated_at = $3
		WHERE id = $4
		RETURNING version
	`
	var version int64
	err := tx.QueryRow(ctx, query, bid.Amount.String(), bid.UserID, bid.CreatedAt, bid.ItemID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to update current bid: %w", err)
	}
	return uint64(version), nil
}

// PostgresHistoryRepository implements bids.HistoryRepository
type PostgresHistoryRepository struct {
	db pkgdb.DBTX
}

var _ bids.HistoryRepository = (*PostgresHistoryRepository)(nil)

// NewPostgresHistoryRepository creates a new bid history repository
func NewPostgresHistoryRepository(db pkgdb.DBTX) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

// GetBidsByUserID returns the user's bids joined with their items, newest
// first
func (r *PostgresHistoryRepository) GetBidsByUserID(ctx context.Context, userID uuid.UUID) ([]*bids.HistoryEntry, error) {
	query := `
		SELECT b.id, b.item_id, b.user_id, b.amount::text, b.created_at,
			i.id, i.title, i.start_price::text, i.current_bid::text, i.last_bidder_id,
			i.version, i.end_at, i.created_at, i.updated_at
		FROM bids b
		JOIN items i ON i.id = b.item_id
		WHERE b.user_id = $1
		ORDER BY b.seq DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	result := []*bids.HistoryEntry{}
	for rows.Next() {
		var (
			entry      bids.HistoryEntry
			amount     string
			startPrice string
			currentBid string
			lastBidder uuid.NullUUID
			version    int64
		)
		if err := rows.Scan(
			&entry.Bid.ID,
			&entry.Bid.ItemID,
			&entry.Bid.UserID,
			&amount,
			&entry.Bid.CreatedAt,
			&entry.Item.ID,
			&entry.Item.Title,
			&startPrice,
			&currentBid,
			&lastBidder,
			&version,
			&entry.Item.EndAt,
			&entry.Item.CreatedAt,
			&entry.Item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}

		if entry.Bid.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid bid amount %q: %w", amount, err)
		}
		if entry.Item.StartPrice, err = decimal.NewFromString(startPrice); err != nil {
			return nil, fmt.Errorf("invalid start price %q: %w", startPrice, err)
		}
		if entry.Item.CurrentBid, err = decimal.NewFromString(currentBid); err != nil {
			return nil, fmt.Errorf("invalid current bid %q: %w", currentBid, err)
		}
		if lastBidder.Valid {
			entry.Item.LastBidderID = lastBidder.UUID
		}
		entry.Item.Version = uint64(version)
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}
