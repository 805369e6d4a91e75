// Package auth issues and verifies HS256 bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"gocart/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Signer struct {
	Secret []byte
	TTL    time.Duration
}

// Issue signs a token for the user valid from now for TTL (24h when unset).
func (s Signer) Issue(rc domain.RequestContext, now time.Time) (string, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := Claims{
		UserID:   rc.UserID,
		Username: rc.Username,
		Role:     rc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse verifies raw and returns the identity it carries.
func (s Signer) Parse(raw string) (domain.RequestContext, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.RequestContext{}, domain.UnauthorizedError{Msg: "token expired"}
		}
		return domain.RequestContext{}, domain.UnauthorizedError{Msg: "invalid token"}
	}
	if claims.UserID <= 0 {
		return domain.RequestContext{}, domain.UnauthorizedError{Msg: "invalid token"}
	}
	return domain.RequestContext{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}
