package token

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"signon/internal/platform/config"
	"signon/internal/platform/metrics"
	"signon/pkg/audit"
	dErrors "signon/pkg/domain-errors"
)

// Service implements the token lifecycle on top of a Store. Value generation
// and expiry policy live here; the store only provides atomic persistence.
type Service struct {
	store   Store
	ttls    config.TokenConfig
	logger  *slog.Logger
	auditor audit.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, ttls config.TokenConfig, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}
	svc := &Service{
		store:  store,
		ttls:   ttls,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue creates a fresh token for (username, type), invalidating any previous
// live token of the same type for that user.
func (s *Service) Issue(ctx context.Context, username string, tokenType Type) (SecurityToken, error) {
	value, err := generateValue(tokenType)
	if err != nil {
		return SecurityToken{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate token value")
	}

	now := s.now()
	t := SecurityToken{
		Value:     value,
		Type:      tokenType,
		Username:  strings.ToUpper(username),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl(tokenType)),
	}
	if err := s.store.Replace(ctx, t); err != nil {
		return SecurityToken{}, dErrors.Wrap(err, dErrors.CodeInternal, "store token")
	}

	s.logger.Info("token issued", "type", tokenType.Description(), "username", t.Username)
	audit.Track(ctx, s.auditor, audit.EventTokenIssued, t.Username,
		map[string]string{"type": tokenType.Description()})
	if s.metrics != nil {
		s.metrics.TokensIssued.WithLabelValues(string(tokenType)).Inc()
	}
	return t, nil
}

// Check verifies a token is live without consuming it. Used where no
// authenticated principal exists yet, e.g. rendering a reset-password page.
func (s *Service) Check(ctx context.Context, tokenType Type, value string) error {
	_, err := s.find(ctx, tokenType, value)
	return err
}

// CheckForUser additionally verifies the token belongs to the expected user,
// preventing a token captured in one session being replayed in another.
func (s *Service) CheckForUser(ctx context.Context, tokenType Type, value, username string) error {
	t, err := s.find(ctx, tokenType, value)
	if err != nil {
		return err
	}
	if t.Username != strings.ToUpper(username) {
		s.logger.Info("token presented by wrong user", "type", tokenType.Description())
		return dErrors.New(dErrors.CodeTokenWrongUser, "token was issued to a different user")
	}
	return nil
}

// Consume atomically removes the token and returns its owner. Exactly one of
// any set of concurrent consumers succeeds.
func (s *Service) Consume(ctx context.Context, tokenType Type, value string) (string, error) {
	t, err := s.store.Consume(ctx, tokenType, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "consume token")
	}
	if t.Expired(s.now()) {
		return "", dErrors.New(dErrors.CodeTokenExpired, "token has expired")
	}

	audit.Track(ctx, s.auditor, audit.EventTokenConsumed, t.Username,
		map[string]string{"type": tokenType.Description()})
	if s.metrics != nil {
		s.metrics.TokensConsumed.WithLabelValues(string(tokenType)).Inc()
	}
	return t.Username, nil
}

// Remove discards a token without treating absence as an error. Used when a
// flow abandons its challenge.
func (s *Service) Remove(ctx context.Context, tokenType Type, value string) error {
	return s.store.Delete(ctx, tokenType, value)
}

// RemoveForUser discards a user's live token of the given type without
// knowing its value. Used to kill an undelivered MFA code on lockout.
func (s *Service) RemoveForUser(ctx context.Context, username string, tokenType Type) error {
	return s.store.DeleteForUser(ctx, strings.ToUpper(username), tokenType)
}

// Owner returns the username a live token belongs to.
func (s *Service) Owner(ctx context.Context, tokenType Type, value string) (string, error) {
	t, err := s.find(ctx, tokenType, value)
	if err != nil {
		return "", err
	}
	return t.Username, nil
}

func (s *Service) find(ctx context.Context, tokenType Type, value string) (SecurityToken, error) {
	if value == "" {
		return SecurityToken{}, ErrNotFound
	}
	t, err := s.store.Find(ctx, tokenType, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SecurityToken{}, ErrNotFound
		}
		return SecurityToken{}, dErrors.Wrap(err, dErrors.CodeInternal, "load token")
	}
	if t.Expired(s.now()) {
		return SecurityToken{}, dErrors.New(dErrors.CodeTokenExpired, "token has expired")
	}
	return t, nil
}

func (s *Service) ttl(tokenType Type) time.Duration {
	switch tokenType {
	case TypeReset:
		return s.ttls.ResetTTL
	case TypeVerified:
		return s.ttls.VerifiedTTL
	case TypeAccount:
		return s.ttls.AccountTTL
	case TypeRememberMe:
		return s.ttls.RememberMeTTL
	default:
		return s.ttls.MfaTTL
	}
}

// generateValue returns a UUID for link-style tokens and a six digit numeric
// code for MFA codes, matching what users receive by email or text.
func generateValue(tokenType Type) (string, error) {
	if tokenType != TypeMfaCode {
		return uuid.NewString(), nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
