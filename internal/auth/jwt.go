// Package auth validates the session cookie's bearer credential.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sitewise/inspection-exporter/internal/export"
)

// Validation failures. Callers treat every one of them as Unauthenticated;
// the distinction exists for logging.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrMissingSubject = errors.New("missing subject in claims")
)

// Claims are the custom JWT claims carried by the session cookie.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Validator verifies HMAC-signed session tokens against the shared secret.
type Validator struct {
	secret []byte
}

// NewValidator creates a Validator. The secret is configuration, not state;
// validation is a pure function of token plus secret.
func NewValidator(secret string) (*Validator, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}
	return &Validator{secret: []byte(secret)}, nil
}

// Validate parses and verifies the token, returning the caller identity.
func (v *Validator) Validate(token string) (export.Identity, error) {
	if token == "" {
		return export.Identity{}, fmt.Errorf("%w: %w", export.ErrUnauthenticated, ErrInvalidToken)
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return export.Identity{}, fmt.Errorf("%w: %w", export.ErrUnauthenticated, ErrExpiredToken)
		}
		return export.Identity{}, fmt.Errorf("%w: %w", export.ErrUnauthenticated, ErrInvalidToken)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return export.Identity{}, fmt.Errorf("%w: %w", export.ErrUnauthenticated, ErrInvalidToken)
	}
	if claims.Subject == "" {
		return export.Identity{}, fmt.Errorf("%w: %w", export.ErrUnauthenticated, ErrMissingSubject)
	}

	return export.Identity{
		SubjectID: claims.Subject,
		Role:      claims.Role,
	}, nil
}
