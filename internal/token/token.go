// Package token issues and verifies signed share tokens. A token is a
// bearer capability: anyone holding the string can read the embedded owner's
// tasks until it expires. There is no revocation.
package token

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, tampered and expired tokens alike; the
// distinction is logged but never exposed to callers.
var ErrInvalidToken = errors.New("invalid or expired share token")

// Claims is the payload embedded in a share token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Service signs and verifies share tokens with a process-wide symmetric key.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService builds a token service. The secret comes from configuration,
// never from a compiled-in literal.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the validity window tokens are issued with.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue produces a compact signed token for ownerID, valid for the
// configured window from now.
func (s *Service) Issue(ownerID string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign share token: %w", err)
	}
	return signed, nil
}

// Verify returns the owner id embedded in tok, or ErrInvalidToken.
func (s *Service) Verify(tok string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		log.Printf("share token rejected: %v", err)
		return "", ErrInvalidToken
	}
	if claims.UserID == "" {
		log.Printf("share token rejected: empty userId claim")
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
