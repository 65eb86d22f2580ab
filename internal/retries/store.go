package retries

import (
	"context"

	"signon/internal/directory"
)

// Scope separates failure counters: password failures and each MFA channel
// count independently, so two wrong codes never contribute to a password
// lockout and vice versa.
type Scope string

const (
	ScopeLogin             Scope = "LOGIN"
	ScopeMfaEmail          Scope = "MFA_EMAIL"
	ScopeMfaText           Scope = "MFA_TEXT"
	ScopeMfaSecondaryEmail Scope = "MFA_SECONDARY_EMAIL"
)

// MfaScopes lists the per-channel scopes, for clearing stale counters after a
// full successful login.
func MfaScopes() []Scope {
	return []Scope{ScopeMfaEmail, ScopeMfaText, ScopeMfaSecondaryEmail}
}

// ScopeForChannel maps an MFA delivery channel to its counter scope.
func ScopeForChannel(preference directory.MfaPreference) Scope {
	switch preference {
	case directory.MfaPreferenceText:
		return ScopeMfaText
	case directory.MfaPreferenceSecondaryEmail:
		return ScopeMfaSecondaryEmail
	default:
		return ScopeMfaEmail
	}
}

// Store tracks consecutive failures per (user, scope).
//
// IncrementAndGet must be atomic: when two failures for the same counter
// race, each caller sees a distinct count, so exactly one observes the
// lockout threshold.
type Store interface {
	IncrementAndGet(ctx context.Context, username string, scope Scope) (int, error)
	Reset(ctx context.Context, username string, scope Scope) error
}
