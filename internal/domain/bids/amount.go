package bids

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits of a currency amount.
const AmountScale int32 = 2

// MaxAmount is the largest amount the ledger stores (NUMERIC(10,2)).
var MaxAmount = decimal.RequireFromString("99999999.99")

// ParseAmount parses a raw bid amount into an exact two-digit decimal.
// It rejects anything that is not a positive, finite number with at most two
// fractional digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}

	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}

	return amount.Round(AmountScale), nil
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}
