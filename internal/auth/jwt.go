package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/evento-ems/access/pkg/errors"
)

const issuerName = "evento-access"

// Subject is the identity a session token asserts.
type Subject struct {
	UserID string
	Email  string
}

// Claims represents the JWT claims of a session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Expiry returns the expiry time in UTC, or nil when the token never expires.
func (c *Claims) Expiry() *time.Time {
	if c.ExpiresAt == nil {
		return nil
	}
	t := c.ExpiresAt.Time.UTC()
	return &t
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock replaces the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an issuer. A zero ttl issues tokens without an expiry.
func NewIssuer(secret string, ttl time.Duration, opts ...IssuerOption) *Issuer {
	i := &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(i.now),
		jwt.WithStrictDecoding(),
	)
	return i
}

// Issue signs a token for sub.
func (i *Issuer) Issue(sub Subject) (string, error) {
	now := i.now().UTC()
	claims := &Claims{
		UserID: sub.UserID,
		Email:  sub.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  sub.UserID,
			Issuer:   issuerName,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and registered claims of token. Every failure
// returns apperrors.ErrInvalidSignature so callers cannot tell a malformed
// token from a tampered or expired one.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, apperrors.ErrInvalidSignature
	}
	return claims, nil
}
