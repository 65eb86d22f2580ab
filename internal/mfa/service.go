// Package mfa implements the second-factor challenge: deciding whether a
// login needs one, delivering codes over the user's chosen channel, and
// validating submissions with per-channel lockout.
package mfa

import (
	"context"
	"errors"
	"log/slog"

	"signon/internal/directory"
	"signon/internal/identity"
	"signon/internal/notify"
	"signon/internal/platform/config"
	"signon/internal/platform/metrics"
	"signon/internal/retries"
	"signon/internal/token"
	"signon/pkg/audit"
	dErrors "signon/pkg/domain-errors"
	"signon/pkg/masking"
)

// TokenService is the slice of the token lifecycle the engine uses.
type TokenService interface {
	Issue(ctx context.Context, username string, tokenType token.Type) (token.SecurityToken, error)
	CheckForUser(ctx context.Context, tokenType token.Type, value, username string) error
	Owner(ctx context.Context, tokenType token.Type, value string) (string, error)
	Consume(ctx context.Context, tokenType token.Type, value string) (string, error)
	Remove(ctx context.Context, tokenType token.Type, value string) error
	RemoveForUser(ctx context.Context, username string, tokenType token.Type) error
}

// RetryService is the per-channel lockout bookkeeping.
type RetryService interface {
	RecordFailure(ctx context.Context, username string, scope retries.Scope) (bool, error)
	RecordSuccess(ctx context.Context, username string, scope retries.Scope) error
}

// MasterResolver looks an owner back up when a challenge is resent.
type MasterResolver interface {
	ResolveMaster(ctx context.Context, username string) (identity.Identity, error)
}

// PreferenceStore persists a changed MFA preference on the local record.
type PreferenceStore interface {
	FindByUsername(ctx context.Context, username string) (directory.AuthUser, error)
	Save(ctx context.Context, user directory.AuthUser) error
}

// Challenge is the caller-visible state of an issued challenge. The code
// itself travels only over the delivery channel.
type Challenge struct {
	Token           string                  `json:"token"`
	Channel         directory.MfaPreference `json:"channel"`
	DestinationMask string                  `json:"destination"`
}

// Engine drives the challenge state machine.
type Engine struct {
	tokens    TokenService
	retries   RetryService
	resolver  MasterResolver
	sender    notify.Sender
	remember  *RememberMe
	templates config.NotifyConfig
	prefs     PreferenceStore
	logger    *slog.Logger
	auditor   audit.Publisher
	metrics   *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(e *Engine) { e.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPreferenceStore enables preference updates on the local record.
func WithPreferenceStore(store PreferenceStore) Option {
	return func(e *Engine) { e.prefs = store }
}

func New(tokens TokenService, retryService RetryService, resolver MasterResolver,
	sender notify.Sender, remember *RememberMe, templates config.NotifyConfig, opts ...Option) (*Engine, error) {
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if retryService == nil {
		return nil, errors.New("retry service is required")
	}
	if resolver == nil {
		return nil, errors.New("identity resolver is required")
	}
	if sender == nil {
		return nil, errors.New("notification sender is required")
	}
	if remember == nil {
		return nil, errors.New("remember-me signer is required")
	}
	e := &Engine{
		tokens:    tokens,
		retries:   retryService,
		resolver:  resolver,
		sender:    sender,
		remember:  remember,
		templates: templates,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NeedsMfa reports whether this login must complete a challenge. Trusted
// networks and devices carrying a valid remember-me token are exempt.
func (e *Engine) NeedsMfa(id identity.Identity, rememberToken string, trustedNetwork bool) bool {
	if trustedNetwork {
		return false
	}
	if e.remember.Verify(rememberToken, id.Username) {
		e.logger.Info("mfa skipped for remembered device", "username", id.Username)
		return false
	}
	return true
}

// Start issues a challenge: picks the delivery channel, generates a code,
// sends it, and returns the challenge token with a masked destination. The
// full address or number is never returned.
func (e *Engine) Start(ctx context.Context, id identity.Identity) (Challenge, error) {
	channel, destination, err := pickChannel(id, id.MfaPreference)
	if err != nil {
		return Challenge{}, err
	}
	return e.issue(ctx, id.Username, channel, destination, audit.EventMfaCodeSent)
}

// Resend re-issues the challenge for the same owner, invalidating the
// previous code, optionally over a different channel. The failure counter is
// deliberately untouched: asking for a fresh code is not a second chance.
func (e *Engine) Resend(ctx context.Context, challengeToken string, override directory.MfaPreference) (Challenge, error) {
	owner, err := e.tokens.Owner(ctx, token.TypeMfa, challengeToken)
	if err != nil {
		return Challenge{}, err
	}
	id, err := e.resolver.ResolveMaster(ctx, owner)
	if err != nil {
		return Challenge{}, err
	}

	preference := id.MfaPreference
	if override != "" {
		if !channelUsable(id, override) {
			return Challenge{}, dErrors.New(dErrors.CodeNoVerifiedContact, "no verified contact for the requested channel")
		}
		preference = override
	}
	channel, destination, err := pickChannel(id, preference)
	if err != nil {
		return Challenge{}, err
	}
	return e.issue(ctx, id.Username, channel, destination, audit.EventMfaCodeResent)
}

func (e *Engine) issue(ctx context.Context, username string, channel directory.MfaPreference, destination, action string) (Challenge, error) {
	challenge, err := e.tokens.Issue(ctx, username, token.TypeMfa)
	if err != nil {
		return Challenge{}, err
	}
	code, err := e.tokens.Issue(ctx, username, token.TypeMfaCode)
	if err != nil {
		return Challenge{}, err
	}
	if err := e.deliver(ctx, channel, destination, code.Value); err != nil {
		return Challenge{}, err
	}

	mask := masking.Email(destination)
	if channel == directory.MfaPreferenceText {
		mask = masking.Phone(destination)
	}

	e.logger.Info("mfa code sent", "username", challenge.Username, "channel", channel)
	audit.Track(ctx, e.auditor, action, challenge.Username, map[string]string{"channel": string(channel)})
	if e.metrics != nil {
		e.metrics.MfaCodesSent.WithLabelValues(string(channel)).Inc()
	}
	return Challenge{Token: challenge.Value, Channel: channel, DestinationMask: mask}, nil
}

func (e *Engine) deliver(ctx context.Context, channel directory.MfaPreference, destination, code string) error {
	personalisation := map[string]string{"code": code}
	if channel == directory.MfaPreferenceText {
		return e.sender.SendText(ctx, e.templates.MfaTextTemplate, destination, personalisation)
	}
	return e.sender.SendEmail(ctx, e.templates.MfaEmailTemplate, destination, personalisation)
}

// Validate checks a submitted code against the challenge. Three wrong codes
// on the same channel lock the account; the caller must then force sign-out
// rather than re-render the challenge. A correct code consumes both the
// challenge and the code, so replays fail with TokenNotFound.
func (e *Engine) Validate(ctx context.Context, challengeToken, submittedCode string, channel directory.MfaPreference) (string, error) {
	owner, err := e.tokens.Owner(ctx, token.TypeMfa, challengeToken)
	if err != nil {
		return "", err
	}

	err = e.tokens.CheckForUser(ctx, token.TypeMfaCode, submittedCode, owner)
	switch {
	case err == nil:
	case dErrors.Is(err, dErrors.CodeTokenExpired):
		e.record("expired")
		return "", err
	case dErrors.Is(err, dErrors.CodeTokenNotFound), dErrors.Is(err, dErrors.CodeTokenWrongUser):
		return "", e.incorrect(ctx, owner, challengeToken, channel)
	default:
		return "", err
	}

	if _, err := e.tokens.Consume(ctx, token.TypeMfaCode, submittedCode); err != nil {
		return "", err
	}
	if err := e.tokens.Remove(ctx, token.TypeMfa, challengeToken); err != nil {
		return "", err
	}
	if err := e.retries.RecordSuccess(ctx, owner, retries.ScopeForChannel(channel)); err != nil {
		return "", err
	}

	e.logger.Info("mfa validated", "username", owner, "channel", channel)
	audit.Track(ctx, e.auditor, audit.EventMfaSuccess, owner, nil)
	e.record("success")
	return owner, nil
}

func (e *Engine) incorrect(ctx context.Context, owner, challengeToken string, channel directory.MfaPreference) error {
	lockedNow, err := e.retries.RecordFailure(ctx, owner, retries.ScopeForChannel(channel))
	if err != nil {
		return err
	}
	audit.Track(ctx, e.auditor, audit.EventMfaFailure, owner, map[string]string{"channel": string(channel)})

	if lockedNow {
		// The challenge is dead: remove both tokens so a retry cannot land
		// after the forced sign-out. The code is removed by owner, since
		// the submitted value is not the live one.
		_ = e.tokens.Remove(ctx, token.TypeMfa, challengeToken)
		_ = e.tokens.RemoveForUser(ctx, owner, token.TypeMfaCode)
		e.record("locked")
		return dErrors.New(dErrors.CodeMfaLocked, "the account is locked after repeated incorrect codes")
	}
	e.record("incorrect")
	return dErrors.New(dErrors.CodeMfaIncorrect, "the code is incorrect")
}

// RememberDevice mints the signed token a device presents to skip future
// challenges. Called only after a successful Validate.
func (e *Engine) RememberDevice(username string) (string, error) {
	return e.remember.Mint(username)
}

// UpdatePreference records a new default channel on the local record,
// creating an alias row for accounts mastered elsewhere.
func (e *Engine) UpdatePreference(ctx context.Context, id identity.Identity, preference directory.MfaPreference) error {
	if e.prefs == nil {
		return dErrors.New(dErrors.CodeInternal, "preference updates are not configured")
	}
	if preference != directory.MfaPreferenceNone && !channelUsable(id, preference) {
		return dErrors.New(dErrors.CodeNoVerifiedContact, "no verified contact for the requested channel")
	}

	user, err := e.prefs.FindByUsername(ctx, id.Username)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load local record")
		}
		user = directory.AuthUser{
			Username:    id.Username,
			Enabled:     true,
			Master:      false,
			AliasSource: id.Source,
		}
	}
	user.MfaPreference = preference
	if err := e.prefs.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save preference")
	}
	e.logger.Info("mfa preference updated", "username", id.Username, "preference", preference)
	return nil
}

func (e *Engine) record(outcome string) {
	if e.metrics != nil {
		e.metrics.MfaValidations.WithLabelValues(outcome).Inc()
	}
}

// pickChannel selects the delivery channel, starting from the preference and
// falling back through email, secondary email, then text until a verified
// contact exists.
func pickChannel(id identity.Identity, preference directory.MfaPreference) (directory.MfaPreference, string, error) {
	order := []directory.MfaPreference{
		preference,
		directory.MfaPreferenceEmail,
		directory.MfaPreferenceSecondaryEmail,
		directory.MfaPreferenceText,
	}
	for _, channel := range order {
		if channelUsable(id, channel) {
			return channel, channelDestination(id, channel), nil
		}
	}
	return "", "", dErrors.New(dErrors.CodeNoVerifiedContact, "no verified contact details for a second factor")
}

func channelUsable(id identity.Identity, channel directory.MfaPreference) bool {
	switch channel {
	case directory.MfaPreferenceEmail:
		return id.EmailVerified && id.Email != ""
	case directory.MfaPreferenceSecondaryEmail:
		return id.SecondaryEmailVerified && id.SecondaryEmail != ""
	case directory.MfaPreferenceText:
		return id.MobileVerified && id.Mobile != ""
	}
	return false
}

func channelDestination(id identity.Identity, channel directory.MfaPreference) string {
	switch channel {
	case directory.MfaPreferenceSecondaryEmail:
		return id.SecondaryEmail
	case directory.MfaPreferenceText:
		return id.Mobile
	}
	return id.Email
}
