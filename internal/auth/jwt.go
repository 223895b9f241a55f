// Package auth verifies the identity tokens callers present. The
// service never authenticates anybody itself; it trusts claims minted
// by the identity provider and signed with the shared secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a verified token asserts about the caller. UserID is
// always present; the identity fields are whatever the provider chose
// to include.
type Identity struct {
	UserID      string
	Email       string
	PhoneNumber string
	DisplayName string
}

// Claims is the JWT payload carrying an Identity.
type Claims struct {
	UserID               string `json:"user_id"`
	Email                string `json:"email,omitempty"`
	PhoneNumber          string `json:"phone_number,omitempty"`
	DisplayName          string `json:"display_name,omitempty"`
	jwt.RegisteredClaims        // ExpiresAt, IssuedAt, etc.
}

// Identity converts the claims into the caller identity the handlers
// consume.
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:      c.UserID,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		DisplayName: c.DisplayName,
	}
}

// JWTManager signs and validates the JWT tokens used by the API.
type JWTManager struct {
	secretKey string        // HMAC signing secret, from environment
	duration  time.Duration // validity period for minted tokens
}

// NewJWTManager returns a configured JWTManager.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: secretKey,
		duration:  duration,
	}
}

// GenerateToken issues a signed token asserting the given identity.
// Production tokens come from the identity provider; this exists for
// local development and tests, which share the secret.
func (m *JWTManager) GenerateToken(id Identity) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.duration)

	claims := &Claims{
		UserID:      id.UserID,
		Email:       id.Email,
		PhoneNumber: id.PhoneNumber,
		DisplayName: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC before touching the signature;
		// otherwise an asymmetric token could smuggle its own key.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}
