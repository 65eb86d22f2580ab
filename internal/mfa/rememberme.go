package mfa

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"signon/internal/platform/config"
)

// RememberMe mints and verifies the signed tokens that let a device skip the
// MFA challenge for a while after a successful validation. The token lives in
// a cookie on the user's device; it is signed, not stored, so losing the
// signing key invalidates every outstanding token at once.
type RememberMe struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewRememberMe(cfg config.RememberMeConfig) *RememberMe {
	return &RememberMe{
		key: []byte(cfg.SigningKey),
		ttl: cfg.TTL,
		now: time.Now,
	}
}

// Mint issues a signed remember-me token for the user.
func (r *RememberMe) Mint(username string) (string, error) {
	now := r.now()
	claims := jwt.RegisteredClaims{
		Subject:   strings.ToUpper(username),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.key)
}

// Verify reports whether the token is validly signed, unexpired, and was
// minted for this user. Any defect just means the device must do MFA again,
// so there is no error detail to surface.
func (r *RememberMe) Verify(tokenString, username string) bool {
	if tokenString == "" {
		return false
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return r.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now))
	if err != nil || !parsed.Valid {
		return false
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	return ok && strings.EqualFold(claims.Subject, username)
}
