// Package token issues and validates the signed identity tokens the gateway
// hands out at login. Tokens are stateless: no revocation list exists, a token
// stays valid until its natural expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// MinSecretLen is the minimum signing secret length accepted at startup.
const MinSecretLen = 32

var (
	ErrExpired          = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformed        = errors.New("malformed token")
)

// Claims is the payload embedded in every issued token.
type Claims struct {
	UserID uint     `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens with a symmetric HS256 secret.
type Manager struct {
	secret []byte
}

// NewManager fails fast if the signing secret is absent or too short.
func NewManager(secret []byte) (*Manager, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLen, len(secret))
	}
	return &Manager{secret: secret}, nil
}

// Generate issues a signed token for the given identity with the given ttl.
func (m *Manager) Generate(userID uint, email string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string. Only the HMAC signing family
// is accepted; any other algorithm in the header is rejected outright.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrMalformed
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Refresh re-signs the claims with fresh timing fields, preserving the
// identity payload, to support sliding sessions.
func (m *Manager) Refresh(claims *Claims, ttl time.Duration) (string, error) {
	return m.Generate(claims.UserID, claims.Email, claims.Roles, ttl)
}
