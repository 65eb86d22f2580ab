// Package audit emits security events from domain logic. Events are
// transport-agnostic; sinks decide where they land. The authentication flows
// track every token request, MFA outcome, and lockout so downstream
// monitoring can alert on abuse.
package audit

import (
	"context"
	"time"
)

// Event captures a single auditable action.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Username  string            `json:"username,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

const (
	EventTokenIssued          = "token_issued"
	EventTokenConsumed        = "token_consumed"
	EventLoginFailed          = "login_failed"
	EventAccountLocked        = "account_locked"
	EventAccountUnlocked      = "account_unlocked"
	EventMfaCodeSent          = "mfa_code_sent"
	EventMfaCodeResent        = "mfa_code_resent"
	EventMfaSuccess           = "mfa_success"
	EventMfaFailure           = "mfa_failure"
	EventMfaLocked            = "mfa_locked"
	EventDirectoryUnavailable = "directory_unavailable"
)

// Publisher delivers audit events. Implementations must be safe for
// concurrent use and must not block domain flows on sink latency.
type Publisher interface {
	Emit(ctx context.Context, event Event)
	Close()
}

// Track is a convenience wrapper that stamps and emits an event, tolerating a
// nil publisher so services do not need nil checks at every call site.
func Track(ctx context.Context, p Publisher, action, username string, details map[string]string) {
	if p == nil {
		return
	}
	p.Emit(ctx, Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Username:  username,
		Details:   details,
	})
}

// Noop discards all events.
type Noop struct{}

func (Noop) Emit(context.Context, Event) {}
func (Noop) Close()                      {}
