package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GuestIssuer mints and verifies local guest identities so progress tracking
// works without a third-party login. Tokens are HS256 JWTs whose subject is a
// stable guest user ID; verification failures yield an empty identity rather
// than an error surface, matching the "no identity, no persistence" policy.
type GuestIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGuestIssuer(secret string, ttl time.Duration) *GuestIssuer {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &GuestIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a new guest identity and a signed token for it.
func (g *GuestIssuer) Issue() (token, userID string, err error) {
	userID = "guest-" + uuid.NewString()
	now := g.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign guest token: %w", err)
	}
	return token, userID, nil
}

// Verify returns the user ID carried by a guest token.
func (g *GuestIssuer) Verify(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("empty token")
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parse guest token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}
