// Package verify implements password verification against the backing
// directories, with lockout bookkeeping around every attempt.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"signon/internal/directory"
	"signon/internal/identity"
	"signon/internal/platform/metrics"
	"signon/internal/retries"
	"signon/pkg/audit"
	dErrors "signon/pkg/domain-errors"
)

// MasterResolver finds the authoritative identity for a username.
type MasterResolver interface {
	ResolveMaster(ctx context.Context, username string) (identity.Identity, error)
}

// RetryService is the lockout bookkeeping around each attempt.
type RetryService interface {
	RecordFailure(ctx context.Context, username string, scope retries.Scope) (bool, error)
	RecordSuccess(ctx context.Context, username string, scope retries.Scope) error
	ClearMfaScopes(ctx context.Context, username string) error
}

// Verifier checks a password against the directory that masters the account.
type Verifier struct {
	resolver    MasterResolver
	retries     RetryService
	directories map[directory.Source]directory.Directory
	logger      *slog.Logger
	auditor     audit.Publisher
	metrics     *metrics.Metrics
	now         func() time.Time
}

type Option func(*Verifier)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(v *Verifier) { v.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithClock overrides time for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func New(resolver MasterResolver, retryService RetryService, dirs []directory.Directory, opts ...Option) (*Verifier, error) {
	if resolver == nil {
		return nil, errors.New("identity resolver is required")
	}
	if retryService == nil {
		return nil, errors.New("retry service is required")
	}
	if len(dirs) == 0 {
		return nil, errors.New("at least one directory is required")
	}
	v := &Verifier{
		resolver:    resolver,
		retries:     retryService,
		directories: make(map[directory.Source]directory.Directory, len(dirs)),
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, dir := range dirs {
		v.directories[dir.Source()] = dir
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify resolves the account and checks the password against its mastering
// directory. A locked account fails fast without touching the directory or
// the counters. A directory outage is reported as such and never counted
// against the user.
func (v *Verifier) Verify(ctx context.Context, username, password string) (identity.Identity, error) {
	username = strings.ToUpper(username)

	id, err := v.resolver.ResolveMaster(ctx, username)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			// Unknown usernames read the same as wrong passwords, so probes
			// cannot enumerate accounts.
			v.record(ctx, username, "unknown_user")
			return identity.Identity{}, dErrors.New(dErrors.CodeInvalidCredentials, "the username or password is incorrect")
		}
		return identity.Identity{}, err
	}

	if id.Locked {
		v.record(ctx, username, "locked")
		return identity.Identity{}, dErrors.New(dErrors.CodeAccountLocked, "the account is locked")
	}
	if !id.Enabled {
		v.record(ctx, username, "disabled")
		return identity.Identity{}, dErrors.New(dErrors.CodeInvalidCredentials, "the username or password is incorrect")
	}

	dir, ok := v.directories[id.Source]
	if !ok {
		return identity.Identity{}, dErrors.Newf(dErrors.CodeInternal, "no directory configured for source %s", id.Source)
	}

	authenticated, err := dir.Authenticate(ctx, id.Username, password)
	if err != nil {
		v.logger.Warn("password check failed upstream", "username", username, "source", id.Source, "error", err)
		v.record(ctx, username, "directory_unavailable")
		audit.Track(ctx, v.auditor, audit.EventDirectoryUnavailable, username,
			map[string]string{"source": string(id.Source)})
		return identity.Identity{}, err
	}

	if !authenticated {
		return identity.Identity{}, v.recordFailure(ctx, username)
	}

	if err := v.retries.RecordSuccess(ctx, username, retries.ScopeLogin); err != nil {
		return identity.Identity{}, err
	}
	if err := v.retries.ClearMfaScopes(ctx, username); err != nil {
		return identity.Identity{}, err
	}

	if id.AccountExpired || id.PasswordExpired(v.now()) {
		v.record(ctx, username, "expired")
		return identity.Identity{}, dErrors.New(dErrors.CodeAccountExpired, "the password has expired")
	}

	v.logger.Info("password verified", "username", username, "source", id.Source)
	v.record(ctx, username, "success")
	return id, nil
}

func (v *Verifier) recordFailure(ctx context.Context, username string) error {
	lockedNow, err := v.retries.RecordFailure(ctx, username, retries.ScopeLogin)
	if err != nil {
		return err
	}
	audit.Track(ctx, v.auditor, audit.EventLoginFailed, username, nil)
	if lockedNow {
		v.record(ctx, username, "locked_now")
		return dErrors.New(dErrors.CodeAccountLocked, "the account is now locked after repeated failures")
	}
	v.record(ctx, username, "bad_password")
	return dErrors.New(dErrors.CodeInvalidCredentials, "the username or password is incorrect")
}

func (v *Verifier) record(_ context.Context, username, outcome string) {
	if v.metrics != nil {
		v.metrics.LoginAttempts.WithLabelValues(outcome).Inc()
	}
	if outcome != "success" {
		v.logger.Info("login attempt rejected", "username", username, "outcome", outcome)
	}
}
