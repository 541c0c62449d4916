// Package token issues and verifies the short lived access tokens that bind a
// respondent to a single flujo.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"k8s.io/utils/clock"
)

// ErrEmptySecret is returned when a codec is built without a signing secret.
var ErrEmptySecret = errors.New("token signing secret cannot be empty")

// Payload is the single claim carried by an access token.
type Payload struct {
	FlujoID string
}

type claims struct {
	FlujoID string `json:"id"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 access tokens.
type Codec struct {
	secret []byte
	issuer string
	clock  clock.PassiveClock
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the clock used for issue and expiry times.
func WithClock(c clock.PassiveClock) Option {
	return func(codec *Codec) {
		codec.clock = c
	}
}

// WithIssuer sets the iss claim of issued tokens and requires it on verification.
func WithIssuer(issuer string) Option {
	return func(codec *Codec) {
		codec.issuer = issuer
	}
}

// NewCodec creates a codec signing with the given secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	codec := &Codec{
		secret: []byte(secret),
		clock:  clock.RealClock{},
	}

	for _, opt := range opts {
		opt(codec)
	}

	return codec, nil
}

// Sign issues a token for the payload that expires expiresIn seconds from now.
func (c *Codec) Sign(payload Payload, expiresIn int64) (string, error) {
	now := c.clock.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		FlujoID: payload.FlujoID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expiresIn) * time.Second)),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// Verify returns the token payload. Malformed, expired and mis-signed tokens
// all yield false.
func (c *Codec) Verify(token string) (*Payload, bool) {
	if token == "" {
		return nil, false
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var parsed claims

	tok, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !tok.Valid || parsed.FlujoID == "" {
		return nil, false
	}

	return &Payload{FlujoID: parsed.FlujoID}, true
}
