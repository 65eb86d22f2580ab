// Package identity turns source-specific directory records into one
// canonical account shape and owns the resolution rules: which directory is
// asked first, which record wins when several match, and how alias rows merge
// with their prison or probation masters.
package identity

import (
	"strings"
	"time"

	"signon/internal/directory"
)

// Identity is the canonical account record the rest of the service works
// with, flattened from whichever directory mastered it.
type Identity struct {
	Username  string
	Source    directory.Source
	FirstName string
	LastName  string

	Email                  string
	EmailVerified          bool
	SecondaryEmail         string
	SecondaryEmailVerified bool
	Mobile                 string
	MobileVerified         bool
	MfaPreference          directory.MfaPreference

	Locked  bool
	Enabled bool
	// AccountExpired marks upstream expiry, e.g. a prison account whose
	// password lapsed. Local password expiry is tracked separately via
	// PasswordExpiry so callers can offer a change-password flow.
	AccountExpired bool
	PasswordExpiry time.Time

	Authorities []string
}

// Name returns the display name.
func (i Identity) Name() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// PasswordExpired reports whether a local password expiry has passed.
func (i Identity) PasswordExpired(now time.Time) bool {
	return !i.PasswordExpiry.IsZero() && i.PasswordExpiry.Before(now)
}

// FromRecord flattens a directory record into the canonical shape.
func FromRecord(r directory.Record) Identity {
	switch r.Source {
	case directory.SourceAuth:
		u := r.Auth
		return Identity{
			Username:               u.Username,
			Source:                 directory.SourceAuth,
			FirstName:              u.FirstName,
			LastName:               u.LastName,
			Email:                  u.Email,
			EmailVerified:          u.EmailVerified,
			SecondaryEmail:         u.SecondaryEmail,
			SecondaryEmailVerified: u.SecondaryEmailVerified,
			Mobile:                 u.Mobile,
			MobileVerified:         u.MobileVerified,
			MfaPreference:          u.MfaPreference,
			Locked:                 u.Locked,
			Enabled:                u.Enabled,
			PasswordExpiry:         u.PasswordExpiry,
			Authorities:            u.Authorities,
		}
	case directory.SourceNomis:
		u := r.Nomis
		return Identity{
			Username:       u.Username,
			Source:         directory.SourceNomis,
			FirstName:      u.FirstName,
			LastName:       u.LastName,
			Email:          u.Email,
			EmailVerified:  u.EmailVerified,
			MfaPreference:  directory.MfaPreferenceEmail,
			Locked:         u.Locked(),
			// Expired accounts stay enabled: the owner can still prove the
			// password and be sent to the change-password flow.
			Enabled:        u.Enabled() || u.AccountStatus == "EXPIRED",
			AccountExpired: u.AccountStatus == "EXPIRED",
		}
	case directory.SourceDelius:
		u := r.Delius
		return Identity{
			Username:      u.Username,
			Source:        directory.SourceDelius,
			FirstName:     u.FirstName,
			LastName:      u.Surname,
			Email:         u.Email,
			EmailVerified: u.Email != "",
			MfaPreference: directory.MfaPreferenceEmail,
			Enabled:       u.Enabled,
			Authorities:   u.Roles,
		}
	case directory.SourceAzureAD:
		u := r.Azure
		return Identity{
			Username:      u.Username,
			Source:        directory.SourceAzureAD,
			FirstName:     u.GivenName,
			LastName:      u.FamilyName,
			Email:         u.Email,
			EmailVerified: true,
			MfaPreference: directory.MfaPreferenceEmail,
			Enabled:       true,
		}
	}
	return Identity{Source: directory.SourceNone}
}

// mergeAlias overlays a local alias row onto the authoritative prison or
// probation identity. The master keeps the account state; the alias
// contributes local authorities, verified contact details, and the MFA
// preference, none of which the upstream systems track.
func mergeAlias(master Identity, alias directory.AuthUser) Identity {
	master.Authorities = mergeAuthorities(master.Authorities, alias.Authorities)
	if alias.EmailVerified {
		master.Email = alias.Email
		master.EmailVerified = true
	}
	if alias.SecondaryEmail != "" {
		master.SecondaryEmail = alias.SecondaryEmail
		master.SecondaryEmailVerified = alias.SecondaryEmailVerified
	}
	if alias.Mobile != "" {
		master.Mobile = alias.Mobile
		master.MobileVerified = alias.MobileVerified
	}
	if alias.MfaPreference != "" {
		master.MfaPreference = alias.MfaPreference
	}
	// A local lock blocks sign-in even when upstream still reports open.
	if alias.Locked {
		master.Locked = true
	}
	return master
}

func mergeAuthorities(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, set := range [][]string{a, b} {
		for _, authority := range set {
			if !seen[authority] {
				seen[authority] = true
				merged = append(merged, authority)
			}
		}
	}
	return merged
}
