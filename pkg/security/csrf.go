package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL bounds how long a rendered form may be submitted.
const DefaultTokenTTL = 12 * time.Hour

const csrfIssuer = "formengine"

// CSRF mints and verifies per-form tokens.
type CSRF interface {
	Mint(formID string) (string, error)
	Verify(token, formID string) bool
}

// CSRFOption configures a TokenCSRF.
type CSRFOption func(*TokenCSRF)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) CSRFOption {
	return func(c *TokenCSRF) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCSRFClock overrides the clock used for issue and expiry checks.
func WithCSRFClock(now func() time.Time) CSRFOption {
	return func(c *TokenCSRF) {
		if now != nil {
			c.now = now
		}
	}
}

// TokenCSRF issues HMAC-signed tokens bound to a form id.
type TokenCSRF struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type csrfClaims struct {
	jwt.RegisteredClaims
	Form string `json:"form"`
}

// NewTokenCSRF returns a provider signing with secret.
func NewTokenCSRF(secret []byte, options ...CSRFOption) (*TokenCSRF, error) {
	if len(secret) < 16 {
		return nil, errors.New("security: csrf secret must be at least 16 bytes")
	}
	c := &TokenCSRF{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *TokenCSRF) Mint(formID string) (string, error) {
	now := c.now().UTC()
	claims := csrfClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    csrfIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Form: formID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("security: sign csrf token: %w", err)
	}
	return token, nil
}

// Verify reports whether token was minted by this provider for formID and
// has not expired.
func (c *TokenCSRF) Verify(token, formID string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	claims := &csrfClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(csrfIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Form == formID
}
