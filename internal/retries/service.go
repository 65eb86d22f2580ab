package retries

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"signon/internal/platform/metrics"
	"signon/pkg/audit"
	dErrors "signon/pkg/domain-errors"
)

// AccountLocker flips the locked flag on an account record. Implemented by
// the local directory's user store.
type AccountLocker interface {
	SetLocked(ctx context.Context, username string, locked bool) error
}

// Service counts consecutive failures per (user, scope) and locks the
// account when a counter reaches the threshold. A success in a scope clears
// that scope's count.
type Service struct {
	store     Store
	locker    AccountLocker
	threshold int
	logger    *slog.Logger
	auditor   audit.Publisher
	metrics   *metrics.Metrics
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

func New(store Store, locker AccountLocker, threshold int, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("retry store is required")
	}
	if locker == nil {
		return nil, errors.New("account locker is required")
	}
	if threshold < 1 {
		return nil, errors.New("lockout threshold must be at least 1")
	}
	svc := &Service{
		store:     store,
		locker:    locker,
		threshold: threshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RecordFailure increments the counter and reports whether this attempt
// locked the account. The store increment is atomic, so of any set of
// concurrent failures exactly one caller crosses the threshold and performs
// the lock; the counter resets as part of locking. A counter at or above the
// threshold always attempts the lock, so a failed lock is retried on the
// next failure rather than leaving the account open.
func (s *Service) RecordFailure(ctx context.Context, username string, scope Scope) (bool, error) {
	username = strings.ToUpper(username)

	count, err := s.store.IncrementAndGet(ctx, username, scope)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "record failure")
	}
	if count < s.threshold {
		s.logger.Info("failure recorded", "username", username, "scope", scope, "count", count)
		return false, nil
	}

	if err := s.locker.SetLocked(ctx, username, true); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "lock account")
	}
	if err := s.store.Reset(ctx, username, scope); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "reset counter after lock")
	}

	s.logger.Warn("account locked after repeated failures", "username", username, "scope", scope)
	action := audit.EventAccountLocked
	if scope != ScopeLogin {
		action = audit.EventMfaLocked
	}
	audit.Track(ctx, s.auditor, action, username, map[string]string{"scope": string(scope)})
	if s.metrics != nil {
		s.metrics.AccountsLocked.Inc()
	}
	return true, nil
}

// RecordSuccess clears the counter for a scope. Idempotent when no failures
// were recorded.
func (s *Service) RecordSuccess(ctx context.Context, username string, scope Scope) error {
	if err := s.store.Reset(ctx, strings.ToUpper(username), scope); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reset counter")
	}
	return nil
}

// ClearMfaScopes drops any stale per-channel counters. Called after a full
// successful login so old MFA failures cannot carry into the next challenge.
func (s *Service) ClearMfaScopes(ctx context.Context, username string) error {
	username = strings.ToUpper(username)
	for _, scope := range MfaScopes() {
		if err := s.store.Reset(ctx, username, scope); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "clear mfa counters")
		}
	}
	return nil
}

// Unlock re-enables a locked account and clears every counter. Used by the
// password reset flow once a new password is set.
func (s *Service) Unlock(ctx context.Context, username string) error {
	username = strings.ToUpper(username)
	if err := s.locker.SetLocked(ctx, username, false); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "unlock account")
	}
	if err := s.store.Reset(ctx, username, ScopeLogin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reset counters on unlock")
	}
	if err := s.ClearMfaScopes(ctx, username); err != nil {
		return err
	}
	audit.Track(ctx, s.auditor, audit.EventAccountUnlocked, username, nil)
	return nil
}
