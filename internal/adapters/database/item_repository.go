package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/floroz/gavel-live/internal/domain/items"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
)

// Amounts travel as text and are parsed by shopspring/decimal, so no value
// passes through float64 on its way in or out.
const itemColumns = `
	id, title, start_price::text, current_bid::text, last_bidder_id, version, end_at, created_at, updated_at`

// PostgresItemRepository implements items.Repository using pgx
type PostgresItemRepository struct {
	pool *pgxpool.Pool
}

var _ items.Repository = (*PostgresItemRepository)(nil)

// NewPostgresItemRepository creates a new PostgreSQL item repository
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// GetItemByID retrieves an item by its ID
func (r *PostgresItemRepository) GetItemByID(ctx context.Context, itemID uuid.UUID) (*items.Item, error) {
	return getItem(ctx, r.pool, itemID, false)
}

// ListActiveItems retrieves items whose auction is still open at now,
// soonest ending first
func (r *PostgresItemRepository) ListActiveItems(ctx context.Context, now time.Time, limit, offset int) ([]*items.Item, error) {
	query := `SELECT` + itemColumns + `
		FROM items
		WHERE end_at > $1
		ORDER BY end_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, now, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	result := []*items.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return result, nil
}

// CreateItem inserts a catalog item. The current bid opens at the start price
// unless it is higher.
func (r *PostgresItemRepository) CreateItem(ctx context.Context, item *items.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CurrentBid.LessThan(item.StartPrice) {
		item.CurrentBid = item.StartPrice
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}

	query := `
		INSERT INTO items (id, title, start_price, current_bid, last_bidder_id, version, end_at, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.Title,
		item.StartPrice.String(),
		item.CurrentBid.String(),
		nullUUID(item.LastBidderID),
		int64(item.Version),
		item.EndAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// getItem works with any DBTX; forUpdate takes the row lock
func getItem(ctx context.Context, db pkgdb.DBTX, itemID uuid.UUID, forUpdate bool) (*items.Item, error) {
	query := `SELECT` + itemColumns + `
		FROM items
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	item, err := scanItem(db.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, items.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func scanItem(row pgx.Row) (*items.Item, error) {
	var (
		item       items.Item
		startPrice string
		currentBid string
		lastBidder uuid.NullUUID
		version    int64
	)
	if err := row.Scan(
		&item.ID,
		&item.Title,
		&startPrice,
		&currentBid,
		&lastBidder,
		&version,
		&item.EndAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if item.StartPrice, err = decimal.NewFromString(startPrice); err != nil {
		return nil, fmt.Errorf("invalid start price %q: %w", startPrice, err)
	}
	if item.CurrentBid, err = decimal.NewFromString(currentBid); err != nil {
		return nil, fmt.Errorf("invalid current bid %q: %w", currentBid, err)
	}
	if lastBidder.Valid {
		item.LastBidderID = lastBidder.UUID
	}
	item.Version = uint64(version)
	return &item, nil
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
