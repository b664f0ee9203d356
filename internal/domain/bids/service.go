package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/domain/clock"
)

// Arbitrator decides every bid attempt. It validates the attempt, hands it to
// the Ledger and reports exactly one outcome to the Dispatcher.
type Arbitrator struct {
	ledger     Ledger
	dispatcher Dispatcher
	clock      clock.Clock
	logger     *slog.Logger
}

// NewArbitrator creates a new arbitrator
func NewArbitrator(ledger Ledger, dispatcher Dispatcher, c clock.Clock, logger *slog.Logger) *Arbitrator {
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbitrator{
		ledger:     ledger,
		dispatcher: dispatcher,
		clock:      c,
		logger:     logger,
	}
}

// PlaceBid arbitrates one bid attempt from origin. Validation happens in a
// fixed order: principal, item id, amount. Only a fully valid attempt reaches
// the Ledger.
func (a *Arbitrator) PlaceBid(ctx context.Context, origin Bidder, rawItemID, rawAmount string) (*Placement, error) {
	cmd, err := a.validate(origin, rawItemID, rawAmount)
	if err != nil {
		return nil, a.reject(origin, err)
	}

	placement, err := a.ledger.AttemptBid(ctx, cmd)
	if err != nil {
		if KindOf(err) == KindUnavailable && !errors.Is(err, ErrUnavailable) {
			a.logger.Error("Ledger failed to process bid",
				"item_id", cmd.ItemID,
				"user_id", cmd.UserID,
				"error", err,
			)
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, a.reject(origin, err)
	}

	a.logger.Info("Bid accepted",
		"item_id", placement.Item.ID,
		"user_id", placement.Bid.UserID,
		"amount", FormatAmount(placement.Bid.Amount),
		"version", placement.Item.Version,
	)
	if a.dispatcher != nil {
		a.dispatcher.OnBidAccepted(origin, placement)
	}
	return placement, nil
}

func (a *Arbitrator) validate(origin Bidder, rawItemID, rawAmount string) (PlaceBidCommand, error) {
	principal := origin.Principal()
	if !principal.ValidAt(a.clock.Now()) {
		return PlaceBidCommand{}, ErrUnauthenticated
	}

	rawItemID = strings.TrimSpace(rawItemID)
	if rawItemID == "" || strings.TrimSpace(rawAmount) == "" {
		return PlaceBidCommand{}, ErrInvalidInput
	}

	itemID, err := uuid.Parse(rawItemID)
	if err != nil {
		// ids are opaque to bidders: a malformed one names no item
		return PlaceBidCommand{}, ErrItemNotFound
	}

	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return PlaceBidCommand{}, err
	}

	return PlaceBidCommand{
		ItemID: itemID,
		UserID: principal.UserID,
		Amount: amount,
	}, nil
}

func (a *Arbitrator) reject(origin Bidder, err error) error {
	a.logger.Info("Bid rejected",
		"session_id", origin.SessionID(),
		"principal", origin.Principal().String(),
		"kind", string(KindOf(err)),
		"error", err,
	)
	if a.dispatcher != nil {
		a.dispatcher.OnBidRejected(origin, err)
	}
	return err
}
