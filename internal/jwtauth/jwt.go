// Package jwtauth validates the access tokens issued by the platform's
// identity service. Onramp never mints driver tokens; it only verifies them.
package jwtauth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"onramp/internal/platform/middleware"
	dErrors "onramp/pkg/domain-errors"
)

// Claims represents the JWT claims carried by driver and admin access tokens.
type Claims struct {
	DriverID string `json:"driver_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service validates HS256 access tokens against the shared signing key.
type Service struct {
	signingKey []byte
}

func NewService(signingKey string) *Service {
	return &Service{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the claims the
// middleware layer consumes.
func (s *Service) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.DriverID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing driver identity")
	}

	return &middleware.JWTClaims{
		DriverID: claims.DriverID,
		Role:     claims.Role,
	}, nil
}
