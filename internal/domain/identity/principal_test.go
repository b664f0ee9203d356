package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/gavel-live/pkg/auth"
)

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s stubValidator) ValidateToken(string) (*auth.Claims, error) {
	return s.claims, s.err
}

func TestResolver_Resolve(t *testing.T) {
	userID := uuid.New()
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	tests := []struct {
		name      string
		validator auth.TokenValidator
		token     string
		want      Principal
	}{
		{
			name:      "absent token resolves to anonymous",
			validator: stubValidator{err: errors.New("should not be called")},
			token:     "",
			want:      Anonymous,
		},
		{
			name:      "invalid token resolves to anonymous",
			validator: stubValidator{err: errors.New("token is expired")},
			token:     "expired",
			want:      Anonymous,
		},
		{
			name: "non uuid subject resolves to anonymous",
			validator: stubValidator{claims: &auth.Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
			}},
			token: "legacy",
			want:  Anonymous,
		},
		{
			name:      "no validator configured",
			validator: nil,
			token:     "anything",
			want:      Anonymous,
		},
		{
			name: "valid token carries user and expiry",
			validator: stubValidator{claims: &auth.Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   userID.String(),
					ExpiresAt: jwt.NewNumericDate(expiry),
				},
			}},
			token: "good",
			want:  Principal{UserID: userID, ExpiresAt: expiry},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.validator, nil)
			got := r.Resolve(tt.token)
			assert.Equal(t, tt.want.UserID, got.UserID)
			assert.True(t, tt.want.ExpiresAt.Equal(got.ExpiresAt))
		})
	}
}

func TestResolver_WithSigner(t *testing.T) {
	signer, err := auth.NewHMACSigner([]byte("secret"), "")
	require.NoError(t, err)

	userID := uuid.New()
	token, _, err := signer.GenerateToken(userID, "", time.Minute)
	require.NoError(t, err)

	r := NewResolver(signer, nil)
	assert.Equal(t, userID, r.Resolve(token).UserID)
	assert.False(t, r.Resolve(token+"tampered").Authenticated())
}

func TestPrincipal_ValidAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, Anonymous.ValidAt(now), "anonymous is never valid")
	assert.True(t, Principal{UserID: uuid.New()}.ValidAt(now), "no expiry means valid")
	assert.True(t, Principal{UserID: uuid.New(), ExpiresAt: now.Add(time.Second)}.ValidAt(now))
	assert.False(t, Principal{UserID: uuid.New(), ExpiresAt: now}.ValidAt(now), "expiry is exclusive")
	assert.Equal(t, "anonymous", Anonymous.String())
}
