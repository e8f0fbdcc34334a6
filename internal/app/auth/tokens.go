// Package auth provides session tokens, credential hashing, and the
// authorization gate in front of every protected operation.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/CalcStack/calc_service/internal/errors"
)

// DefaultTokenTTL bounds session lifetime when no TTL is configured.
const DefaultTokenTTL = 30 * time.Minute

// Claims is the JWT payload for a session token. The subject carries the
// principal's handle.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-bounded session tokens. The
// signing secret is injected once at construction and never mutated.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenService constructs a token service. A non-positive ttl falls back
// to DefaultTokenTTL.
func NewTokenService(secret []byte, ttl time.Duration, issuer string) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: secret, ttl: ttl, issuer: issuer}, nil
}

// Issue mints a token binding the handle, expiring at issue time plus TTL.
func (s *TokenService) Issue(handle string) (string, error) {
	if handle == "" {
		return "", errors.New("handle is required")
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   handle,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates signature and expiry and returns the embedded handle.
// Expired tokens fail with a TokenExpired service error even when the
// signature is valid; every other failure is TokenMalformed.
func (s *TokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperrors.TokenExpired()
		}
		return "", apperrors.TokenMalformed(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", apperrors.TokenMalformed(nil)
	}
	return claims.Subject, nil
}
