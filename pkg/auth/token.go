package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the JWT claims issued by the auth service.
type Claims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email,omitempty"`
	FullName    string   `json:"full_name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// TokenValidator verifies a token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Signer handles token generation and validation.
type Signer struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
}

var _ TokenValidator = (*Signer)(nil)

// NewSigner creates an RS256 Signer from PEM-encoded keys.
func NewSigner(privateKeyPEM, publicKeyPEM []byte, issuer string) (*Signer, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to parse private key PEM")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	pub, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	return &Signer{
		method:    jwt.SigningMethodRS256,
		signKey:   priv,
		verifyKey: pub,
		issuer:    issuer,
	}, nil
}

// NewSignerFromPublicKey creates an RS256 Signer with only the public key.
// This signer cannot generate tokens, only validate them.
func NewSignerFromPublicKey(publicKeyPEM []byte, issuer string) (*Signer, error) {
	pub, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	return &Signer{
		method:    jwt.SigningMethodRS256,
		verifyKey: pub,
		issuer:    issuer,
	}, nil
}

// NewHMACSigner creates an HS256 Signer from a shared secret.
func NewHMACSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("hmac secret is empty")
	}
	return &Signer{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
	}, nil
}

func parseRSAPublicKey(publicKeyPEM []byte) (*rsa.PublicKey, error) {
	blockPub, _ := pem.Decode(publicKeyPEM)
	if blockPub == nil {
		return nil, errors.New("failed to parse public key PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(blockPub.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rsaPub, nil
}

// GenerateToken creates a signed access token for userID valid for ttl.
func (s *Signer) GenerateToken(userID uuid.UUID, email string, ttl time.Duration) (string, time.Time, error) {
	if s.signKey == nil {
		return "", time.Time{}, errors.New("signer cannot sign tokens: no private key")
	}

	now := time.Now()
	expiry := now.Add(ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
		Email: email,
	}

	token := jwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(s.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiry, nil
}

// ValidateToken parses and verifies the JWT signature, expiry and issuer.
func (s *Signer) ValidateToken(tokenString string) (*Claims, error) {
	var opts []jwt.ParserOption
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.verifyKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
