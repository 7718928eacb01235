package utils // package utils provides helpers for session tokens and password hashing

import (
	"crypto/rand" // secure random number generation
	"errors"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

// SessionClaims are the claims carried by a session token. Subject holds
// the user ID and ID (jti) identifies the login session in the registry.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionToken represents a signed session JWT along with its identifier
// and expiry. Token is what the client sends back in the Authorization
// header; ID is the registry key.
type SessionToken struct {
	Token string    // the serialized JWT string
	ID    string    // the jti claim
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for a user. The token
// includes subject (sub), role, a fresh jti, expiration (exp) and issued
// at (iat).
func NewSessionToken(secret []byte, userID, role string, ttl time.Duration, now time.Time) (SessionToken, error) {
	if len(secret) == 0 {
		return SessionToken{}, errors.New("empty signing secret")
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, ID: claims.ID, Exp: claims.ExpiresAt.Time}, nil
}

// ParseSessionToken verifies the signature and expiry of raw and returns
// its claims. Only HS256 is accepted, so a token signed with "none" or an
// asymmetric algorithm is rejected before the key is consulted. Expiry is
// judged against now.
func ParseSessionToken(secret []byte, raw string, now time.Time) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("token missing sub or jti")
	}
	return claims, nil
}

// NewSecret returns n bytes of cryptographically secure random data for
// use as a signing key.
func NewSecret(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
