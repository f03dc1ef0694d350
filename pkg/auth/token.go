// Package auth mints and verifies the HS256 bearer tokens the API accepts.
// Production tokens come from the identity service; minting here serves
// tooling and tests.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/config"
)

var method = jwt.SigningMethodHS256

var (
	// ErrTokenExpired lets callers tell a stale session from a forged one.
	ErrTokenExpired = errors.New("token expired")

	errMissingUser     = errors.New("token missing user id")
	errSubjectMismatch = errors.New("token subject does not match user id")
	errUnknownRole     = errors.New("token carries unknown role")
)

type keyring struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
}

func keyringFrom(cfg config.JWTConfig) (keyring, error) {
	if cfg.Secret == "" {
		return keyring{}, errors.New("jwt secret is required")
	}
	return keyring{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      time.Duration(cfg.ExpirationMinutes) * time.Minute,
		leeway:   cfg.Leeway,
	}, nil
}

func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	keys, err := keyringFrom(cfg)
	if err != nil {
		return "", err
	}
	switch {
	case keys.issuer == "":
		return "", errors.New("jwt issuer is required")
	case keys.ttl <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    keys.issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(keys.ttl)),
		},
	}
	if keys.audience != "" {
		claims.Audience = jwt.ClaimStrings{keys.audience}
	}
	if err := claims.check(); err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString(keys.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer, expiry and, when configured,
// audience. Expired tokens are reported as ErrTokenExpired.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	keys, err := keyringFrom(cfg)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithIssuer(keys.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(keys.leeway),
	}
	if keys.audience != "" {
		opts = append(opts, jwt.WithAudience(keys.audience))
	}

	claims := &AccessTokenClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return keys.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, err
	}
	if err := claims.check(); err != nil {
		return nil, err
	}
	return claims, nil
}
