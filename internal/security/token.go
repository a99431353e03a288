package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingJWTSecret indicates token operations were attempted without a configured secret.
var ErrMissingJWTSecret = errors.New("security: missing jwt secret")

// UserClaims carries the authenticated user identity inside a session token.
type UserClaims struct {
	UserID   uint64 `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateUserToken issues a signed session token for the user.
func GenerateUserToken(secret string, userID uint64, username string, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingJWTSecret
	}
	now := time.Now().UTC()
	claims := UserClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseUserToken validates a session token and returns its claims.
func ParseUserToken(secret, raw string) (*UserClaims, error) {
	if secret == "" {
		return nil, ErrMissingJWTSecret
	}
	claims := &UserClaims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil {
		return nil, errParse
	}
	if !token.Valid {
		return nil, errors.New("security: invalid token")
	}
	return claims, nil
}
