package auth

import (
	"errors"
	"fmt"
	"time"

	"backoffice-api/config"
	"backoffice-api/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload. Role holds one entry per role of the principal.
type Claims struct {
	NameID string   `json:"nameid"`
	Role   []string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates bearer tokens
type Issuer struct {
	key      []byte
	issuer   string
	audience string
	duration time.Duration
	now      func() time.Time
}

// NewIssuer validates the signing settings. All of them are required.
func NewIssuer(cfg config.AuthConfig) (*Issuer, error) {
	var missing []string
	if cfg.JWTKey == "" {
		missing = append(missing, "JWT_KEY")
	}
	if cfg.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	if cfg.JWTAudience == "" {
		missing = append(missing, "JWT_AUDIENCE")
	}
	if cfg.JWTDurationHours <= 0 {
		missing = append(missing, "JWT_DURATION_HOURS")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("token issuer is not configured: missing %v", missing)
	}

	return &Issuer{
		key:      []byte(cfg.JWTKey),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		duration: time.Duration(cfg.JWTDurationHours) * time.Hour,
		now:      time.Now,
	}, nil
}

// Issue creates a signed token for user and returns it with its expiry
func (i *Issuer) Issue(user *models.User) (string, time.Time, error) {
	now := i.now().UTC()
	expiresAt := now.Add(i.duration)

	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}

	claims := Claims{
		NameID: user.ID,
		Role:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ID:        uuid.New().String(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse validates signature, issuer, audience and expiry of a token
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, errors.Join(models.ErrUnauthorized, err)
	}
	return claims, nil
}

// HasAnyRole reports whether the claims carry at least one of roles
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, have := range c.Role {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
