// Package token owns the one-time security token lifecycle shared by
// password-reset, email-verification, initial-password and MFA flows. A token
// proves possession of a prior verification step; at most one live token
// exists per (owner, type).
package token

import "time"

// Type distinguishes the flows a token can belong to.
type Type string

const (
	TypeReset    Type = "RESET"
	TypeVerified Type = "VERIFIED"
	TypeAccount  Type = "ACCOUNT"
	// TypeMfa is the challenge handle held by the session during an MFA
	// round-trip; TypeMfaCode is the numeric code delivered to the user.
	TypeMfa        Type = "MFA"
	TypeMfaCode    Type = "MFA_CODE"
	TypeRememberMe Type = "MFA_RMBR"
)

// Description returns the flow name used in logs and audit events.
func (t Type) Description() string {
	switch t {
	case TypeReset:
		return "ResetPassword"
	case TypeVerified:
		return "VerifyEmail"
	case TypeAccount:
		return "CreateAccount"
	case TypeMfa:
		return "MFA"
	case TypeMfaCode:
		return "MFACode"
	case TypeRememberMe:
		return "MFARememberMe"
	}
	return string(t)
}

// SecurityToken is an opaque, single-use, time-bounded value.
type SecurityToken struct {
	Value     string
	Type      Type
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token has passed its expiry.
func (t SecurityToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
