package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
)

type Claims struct {
	jwt.RegisteredClaims
}

// SignJWT issues an HS256 token whose subject is the caller's identity.
func SignJWT(identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT validates token and returns the identity it was issued to. Every
// rejection carries common.ErrUnauthorized.
func ParseJWT(token, secret string) (string, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", common.WithKind(common.ErrUnauthorized, err)
	}
	if !t.Valid || claims.Subject == "" {
		return "", common.Wrap(common.ErrUnauthorized, "invalid token")
	}
	return claims.Subject, nil
}
