package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quizzy-service/internal/domain"
)

// DefaultTokenTTL is the lifetime of every issued session token.
const DefaultTokenTTL = 24 * time.Hour

var errEmptySecret = errors.New("token secret is empty")

type claims struct {
	domain.Session
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256-signed session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	return NewTokensWithClock(secret, ttl, time.Now)
}

// NewTokensWithClock is used by tests that need to move time forward.
func NewTokensWithClock(secret string, ttl time.Duration, now func() time.Time) (*Tokens, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue signs a token carrying the session.
func (t *Tokens) Issue(session domain.Session) (string, error) {
	now := t.now()
	c := claims{
		Session: session,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(session.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. Any failure is reported as domain.ErrInvalidToken.
func (t *Tokens) Verify(raw string) (domain.Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Session{}, domain.ErrInvalidToken
	}
	if c.UserID == 0 {
		return domain.Session{}, domain.ErrInvalidToken
	}
	return c.Session, nil
}
