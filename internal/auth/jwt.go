package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rollcall/pkg/domain"
	domainerrors "rollcall/pkg/domain-errors"
)

const (
	tokenIssuer = "rollcall"
	// DefaultTokenTTL is how long an issued session token stays valid.
	DefaultTokenTTL = 12 * time.Hour
)

// TokenIssuer signs and verifies session JWTs carrying the user id.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
}

func NewTokenIssuer(key []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("jwt signing key is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{key: key, ttl: ttl}, nil
}

// Issue signs a token for the user, valid from now for the configured TTL.
func (t *TokenIssuer) Issue(userID domain.UserID, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates signature, issuer and expiry, returning the user id.
func (t *TokenIssuer) Verify(token string) (domain.UserID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.UserID{}, domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return domain.UserID{}, domainerrors.New(domainerrors.CodeUnauthorized, "invalid session token")
	}
	userID, err := domain.ParseUserID(claims.Subject)
	if err != nil {
		return domain.UserID{}, domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "invalid session token subject")
	}
	return userID, nil
}
