// Package token issues and verifies the signed bearer tokens handed to
// authenticated teachers.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalid is returned for tampered, mis-signed, malformed or expired tokens.
var ErrInvalid = errors.New("invalid token")

// Claims identifies the account and the session a token was issued for.
type Claims struct {
	AccountID int64  `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	FullName  string `json:"fullName"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// Codec signs claims with a process-wide HMAC secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec returns a Codec for the given secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	return &Codec{secret: append([]byte(nil), secret...), now: time.Now}, nil
}

// Issue signs claims with an expiry ttl from now.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if c == nil {
		return "", errors.New("nil codec")
	}
	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
func (c *Codec) Verify(raw string) (Claims, error) {
	if c == nil {
		return Claims{}, errors.New("nil codec")
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalid
	}
	if claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing expiry", ErrInvalid)
	}
	if claims.SessionID == "" || claims.AccountID == 0 {
		return Claims{}, fmt.Errorf("%w: missing identity", ErrInvalid)
	}
	return claims, nil
}
