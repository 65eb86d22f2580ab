// Package directory defines the boundary to the backing user directories: the
// local credential store, the prison and probation record systems, and the
// federated identity broker. Each directory can check a password, look up a
// username, and find the accounts carrying an email. Unavailability is
// reported as a distinct condition so callers never mistake an outage for a
// missing user.
package directory

import (
	"context"
	"time"

	dErrors "signon/pkg/domain-errors"
)

// Source identifies which backing system a record came from.
type Source string

const (
	SourceAuth    Source = "auth"
	SourceNomis   Source = "nomis"
	SourceDelius  Source = "delius"
	SourceAzureAD Source = "azuread"
	SourceNone    Source = "none"
)

// Description returns the user-facing name of the source system, used in
// "service is experiencing issues" banners.
func (s Source) Description() string {
	switch s {
	case SourceNomis:
		return "NOMIS"
	case SourceDelius:
		return "Delius"
	case SourceAzureAD:
		return "Microsoft sign-in"
	case SourceAuth:
		return "Auth"
	default:
		return string(s)
	}
}

// Unavailable builds the error a directory returns when its upstream cannot
// be reached. Distinct from "not found": an outage must never look like a
// rejected password or a missing account.
func Unavailable(source Source, err error) error {
	return dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, source.Description()+" is experiencing issues")
}

// MfaPreference is the channel a user has chosen for second-factor codes.
type MfaPreference string

const (
	MfaPreferenceNone           MfaPreference = "NONE"
	MfaPreferenceEmail          MfaPreference = "EMAIL"
	MfaPreferenceText           MfaPreference = "TEXT"
	MfaPreferenceSecondaryEmail MfaPreference = "SECONDARY_EMAIL"
)

// Record is a tagged variant over the source-specific account shapes. Exactly
// one payload pointer is set, matching Source. Conversion to the canonical
// identity lives in the identity package, which switches on Source.
type Record struct {
	Source Source

	Auth   *AuthUser
	Nomis  *NomisUser
	Delius *DeliusUser
	Azure  *AzureUser
}

// Username returns the source-specific login name of the record.
func (r Record) Username() string {
	switch r.Source {
	case SourceAuth:
		return r.Auth.Username
	case SourceNomis:
		return r.Nomis.Username
	case SourceDelius:
		return r.Delius.Username
	case SourceAzureAD:
		return r.Azure.Username
	}
	return ""
}

// AuthUser is an account mastered (or aliased) in the local credential store.
type AuthUser struct {
	Username               string
	PasswordHash           string
	FirstName              string
	LastName               string
	Email                  string
	EmailVerified          bool
	SecondaryEmail         string
	SecondaryEmailVerified bool
	Mobile                 string
	MobileVerified         bool
	MfaPreference          MfaPreference
	Locked                 bool
	Enabled                bool
	// Master is true when this store owns the record outright. False marks an
	// alias row for an account mastered in nomis or delius; the alias carries
	// local authorities but defers everything else to the owning directory.
	Master          bool
	AliasSource     Source
	PasswordExpiry  time.Time
	LastLoggedIn    time.Time
	Authorities     []string
}

// NomisUser is a prison system account.
type NomisUser struct {
	Username      string
	FirstName     string
	LastName      string
	Email         string
	EmailVerified bool
	AccountStatus string // OPEN, LOCKED, EXPIRED
	StaffID       string
}

// Enabled reports whether the prison account may sign in.
func (u NomisUser) Enabled() bool { return u.AccountStatus == "OPEN" }

// Locked reports whether the prison account is locked upstream.
func (u NomisUser) Locked() bool { return u.AccountStatus == "LOCKED" }

// DeliusUser is a probation system account.
type DeliusUser struct {
	Username  string
	FirstName string
	Surname   string
	Email     string
	Enabled   bool
	Roles     []string
}

// AzureUser is a federated broker account. The broker authenticates the user
// itself; this record only carries the verified email used to find matching
// accounts in the other directories.
type AzureUser struct {
	Username   string // the directory object id
	Email      string
	GivenName  string
	FamilyName string
}

// Directory is the boundary each backing system implements.
//
// FindByUsername returns (nil, nil) when no account matches; errors are
// reserved for genuine failures, which must satisfy
// dErrors.Is(err, dErrors.CodeDirectoryUnavailable).
type Directory interface {
	Source() Source
	Authenticate(ctx context.Context, username, password string) (bool, error)
	FindByUsername(ctx context.Context, username string) (*Record, error)
	FindByEmail(ctx context.Context, email string) ([]Record, error)
}
