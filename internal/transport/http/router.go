// Package httptransport is the thin HTTP layer over the login engine. It
// decodes requests, delegates to the domain services, and translates domain
// errors into status codes; no business rules live here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signon/internal/directory"
	"signon/internal/identity"
	"signon/internal/mfa"
	"signon/internal/platform/config"
	"signon/internal/platform/middleware"
	"signon/internal/token"
)

// Verifier checks a password and returns the verified identity.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (identity.Identity, error)
}

// MfaEngine drives the second-factor challenge.
type MfaEngine interface {
	NeedsMfa(id identity.Identity, rememberToken string, trustedNetwork bool) bool
	Start(ctx context.Context, id identity.Identity) (mfa.Challenge, error)
	Validate(ctx context.Context, challengeToken, submittedCode string, channel directory.MfaPreference) (string, error)
	Resend(ctx context.Context, challengeToken string, override directory.MfaPreference) (mfa.Challenge, error)
	RememberDevice(username string) (string, error)
	UpdatePreference(ctx context.Context, id identity.Identity, preference directory.MfaPreference) error
}

// Resolver finds candidate and master identities.
type Resolver interface {
	ResolveCandidates(ctx context.Context, loginIdentifier string) (identity.Candidates, error)
	ResolveMaster(ctx context.Context, username string) (identity.Identity, error)
}

// TokenService is the slice of the token lifecycle the reset flow uses.
type TokenService interface {
	Issue(ctx context.Context, username string, tokenType token.Type) (token.SecurityToken, error)
	Consume(ctx context.Context, tokenType token.Type, value string) (string, error)
}

// PasswordStore sets a new local password after a confirmed reset.
type PasswordStore interface {
	FindByUsername(ctx context.Context, username string) (directory.AuthUser, error)
	Save(ctx context.Context, user directory.AuthUser) error
}

// Unlocker clears lockout state once a reset completes.
type Unlocker interface {
	Unlock(ctx context.Context, username string) error
}

// Sessions mints principal tokens for completed logins.
type Sessions interface {
	Issue(username string) (string, error)
}

// ResetSender delivers the reset link.
type ResetSender interface {
	SendEmail(ctx context.Context, templateID, address string, personalisation map[string]string) error
}

// Handler carries the wired services for every route.
type Handler struct {
	logger    *slog.Logger
	verifier  Verifier
	mfa       MfaEngine
	resolver  Resolver
	tokens    TokenService
	passwords PasswordStore
	unlocker  Unlocker
	sessions  Sessions
	sender    ResetSender
	verify    middleware.SessionVerifier
	notify    config.NotifyConfig
	trusted   []netip.Prefix
	health    []HealthCheck
}

// HealthCheck reports one dependency's availability.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HandlerConfig struct {
	Logger        *slog.Logger
	Verifier      Verifier
	Mfa           MfaEngine
	Resolver      Resolver
	Tokens        TokenService
	Passwords     PasswordStore
	Unlocker      Unlocker
	Sessions      Sessions
	ResetSender   ResetSender
	SessionVerify middleware.SessionVerifier
	Notify        config.NotifyConfig
	TrustedCIDRs  []string
	HealthChecks  []HealthCheck
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		logger:    cfg.Logger,
		verifier:  cfg.Verifier,
		mfa:       cfg.Mfa,
		resolver:  cfg.Resolver,
		tokens:    cfg.Tokens,
		passwords: cfg.Passwords,
		unlocker:  cfg.Unlocker,
		sessions:  cfg.Sessions,
		sender:    cfg.ResetSender,
		verify:    cfg.SessionVerify,
		notify:    cfg.Notify,
		health:    cfg.HealthChecks,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	for _, cidr := range cfg.TrustedCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			h.logger.Warn("ignoring unparseable trusted network", "cidr", cidr)
			continue
		}
		h.trusted = append(h.trusted, prefix)
	}
	return h
}

// NewRouter wires all routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/login", h.handleLogin)
		r.Post("/mfa/validate", h.handleMfaValidate)
		r.Post("/mfa/resend", h.handleMfaResend)
		r.Post("/account/candidates", h.handleCandidates)
		r.Post("/account/select", h.handleSelect)
		r.Post("/token/reset", h.handleResetRequest)
		r.Post("/token/reset/confirm", h.handleResetConfirm)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireUser(h.verify, h.logger))
		r.Put("/account/mfa-preference", h.handleUpdatePreference)
	})

	return r
}

// trustedNetwork reports whether the request originates from a network that
// skips the second factor.
func (h *Handler) trustedNetwork(r *http.Request) bool {
	if len(h.trusted) == 0 {
		return false
	}
	addrPort, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	for _, prefix := range h.trusted {
		if prefix.Contains(addrPort.Addr()) {
			return true
		}
	}
	return false
}
