package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type storefrontClaims struct {
	StorefrontID string `json:"storefront_id"`
	jwt.RegisteredClaims
}

// GenerateStorefrontToken signs a token bound to one visitor storefront.
func GenerateStorefrontToken(secret string, storefrontID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &storefrontClaims{
		StorefrontID: storefrontID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   storefrontID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseStorefrontToken validates the token and returns the storefront ID.
func ParseStorefrontToken(secret, tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &storefrontClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, err
	}

	if claims, ok := token.Claims.(*storefrontClaims); ok && token.Valid {
		return uuid.Parse(claims.StorefrontID)
	}

	return uuid.Nil, jwt.ErrTokenInvalidClaims
}
