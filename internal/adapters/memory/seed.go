package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/floroz/gavel-live/internal/domain/items"
)

// DemoCatalog returns a handful of open auctions ending at staggered times
// after now. It is used when the service runs without a database.
func DemoCatalog(now time.Time) []items.Item {
	demo := []struct {
		title    string
		price    string
		duration time.Duration
	}{
		{"Vintage Fender Stratocaster", "1200.00", 30 * time.Minute},
		{"Signed First Edition Novel", "250.00", 45 * time.Minute},
		{"Mid-Century Teak Sideboard", "480.00", time.Hour},
		{"Mechanical Chronograph Watch", "2150.00", 2 * time.Hour},
		{"Framed Concert Poster 1969", "95.50", 3 * time.Hour},
		{"Restored Road Bicycle", "640.00", 6 * time.Hour},
	}

	out := make([]items.Item, 0, len(demo))
	for _, d := range demo {
		price := decimal.RequireFromString(d.price)
		out = append(out, items.Item{
			Title:      d.title,
			StartPrice: price,
			CurrentBid: price,
			EndAt:      now.Add(d.duration),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return out
}
