// Package session issues the signed principal tokens a caller receives once
// a login is fully verified, including any MFA challenge. Downstream grant
// machinery exchanges them for its own credentials; here they only prove who
// completed the login.
package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"signon/internal/platform/config"
	dErrors "signon/pkg/domain-errors"
)

// Signer mints and verifies session tokens.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewSigner(cfg config.SessionConfig) *Signer {
	return &Signer{
		key: []byte(cfg.SigningKey),
		ttl: cfg.TTL,
		now: time.Now,
	}
}

// Issue mints a session token for a verified user.
func (s *Signer) Issue(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strings.ToUpper(username),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return token, nil
}

// Verify returns the username a valid session token was issued to.
func (s *Signer) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims.Subject, nil
}
