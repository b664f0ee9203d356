package bids

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/floroz/gavel-live/internal/domain/items"
)

// Bid attempt errors. Every one of them is terminal for the attempt and is
// reported to the bidder only.
var (
	ErrUnauthenticated = errors.New("you must be logged in to place a bid")
	ErrInvalidInput    = errors.New("item id and bid amount are required")
	ErrInvalidAmount   = errors.New("bid amount must be a positive number")
	ErrItemNotFound    = items.ErrItemNotFound
	ErrAuctionEnded    = errors.New("auction has ended")
	ErrBidTooLow       = errors.New("bid amount must be higher than current highest bid")
	ErrUnavailable     = errors.New("your bid could not be processed")
)

// BidTooLowError carries the amount a new bid has to beat.
type BidTooLowError struct {
	Current decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be higher than current bid of %s", FormatAmount(e.Current))
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

// Kind classifies a bid attempt error for clients.
type Kind string

const (
	KindUnauthenticated Kind = "Unauthenticated"
	KindInvalidInput    Kind = "InvalidInput"
	KindInvalidAmount   Kind = "InvalidAmount"
	KindItemNotFound    Kind = "ItemNotFound"
	KindAuctionEnded    Kind = "AuctionEnded"
	KindBidTooLow       Kind = "BidTooLow"
	KindUnavailable     Kind = "Unavailable"
)

// KindOf maps err to its Kind. Anything outside the taxonomy is Unavailable.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrItemNotFound):
		return KindItemNotFound
	case errors.Is(err, ErrAuctionEnded):
		return KindAuctionEnded
	case errors.Is(err, ErrBidTooLow):
		return KindBidTooLow
	default:
		return KindUnavailable
	}
}

// PublicMessage is the text shown to the bidder. Storage failures are not
// described beyond ErrUnavailable.
func PublicMessage(err error) string {
	if KindOf(err) == KindUnavailable {
		return ErrUnavailable.Error()
	}
	var tooLow *BidTooLowError
	if errors.As(err, &tooLow) {
		return tooLow.Error()
	}
	for _, sentinel := range []error{
		ErrUnauthenticated, ErrInvalidInput, ErrInvalidAmount,
		ErrItemNotFound, ErrAuctionEnded, ErrBidTooLow,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
