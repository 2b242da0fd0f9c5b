package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const authenticatedAudience = "authenticated"

var jwtSigningMethod = jwt.SigningMethodHS256

// MintAccessToken issues an HS256 token shaped like the hosted auth service's access tokens.
func MintAccessToken(secret string, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("jwt ttl must be positive")
	}
	role := strings.TrimSpace(payload.Role)
	if role == "" {
		role = authenticatedAudience
	}

	claims := AccessTokenClaims{
		Email:     payload.Email,
		Role:      role,
		SessionID: payload.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.UserID.String(),
			Audience:  jwt.ClaimStrings{authenticatedAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken decodes an access token. With a secret the signature and expiry are
// verified; without one the claims are read as-is and the backend stays the authority.
func ParseAccessToken(secret, tokenString string) (*AccessTokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("access token is empty")
	}

	claims := &AccessTokenClaims{}
	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("decoding access token: %w", err)
		}
		return claims, nil
	}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithAudience(authenticatedAudience),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
