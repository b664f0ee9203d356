// Package identity resolves connection credentials into principals.
package identity

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/pkg/auth"
)

// Principal is the identity attached to a connection. The zero value is the
// anonymous principal.
type Principal struct {
	UserID    uuid.UUID
	ExpiresAt time.Time // zero when the credential carried no expiry
}

// Anonymous is the principal of a connection without a valid credential.
var Anonymous = Principal{}

// Authenticated reports whether the principal was resolved from a credential.
func (p Principal) Authenticated() bool {
	return p.UserID != uuid.Nil
}

// ValidAt reports whether the principal may act at now. A principal whose
// credential expired after connect time is no longer valid, even though the
// connection keeps it.
func (p Principal) ValidAt(now time.Time) bool {
	if !p.Authenticated() {
		return false
	}
	return p.ExpiresAt.IsZero() || now.Before(p.ExpiresAt)
}

// String returns the user id, or "anonymous".
func (p Principal) String() string {
	if !p.Authenticated() {
		return "anonymous"
	}
	return p.UserID.String()
}

// Resolver turns connect-time credentials into principals.
type Resolver struct {
	validator auth.TokenValidator
	logger    *slog.Logger
}

// NewResolver creates a resolver. A nil validator resolves everything to
// Anonymous.
func NewResolver(validator auth.TokenValidator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{validator: validator, logger: logger}
}

// Resolve never fails: an absent, malformed or expired token yields Anonymous.
func (r *Resolver) Resolve(token string) Principal {
	if token == "" || r.validator == nil {
		return Anonymous
	}

	claims, err := r.validator.ValidateToken(token)
	if err != nil {
		r.logger.Debug("Token rejected, connecting as anonymous", "error", err)
		return Anonymous
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		r.logger.Debug("Token subject is not a user id", "subject", claims.Subject)
		return Anonymous
	}

	p := Principal{UserID: userID}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p
}
