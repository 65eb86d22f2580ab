// Package auth implements the local credential store directory. It masters
// accounts created directly in this service and carries alias rows for
// prison/probation accounts that need local authorities, verified contact
// details, or MFA preferences.
package auth

import (
	"context"

	"signon/internal/directory"
	dErrors "signon/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "user not found")

// UserStore persists local account records.
type UserStore interface {
	Save(ctx context.Context, user directory.AuthUser) error
	FindByUsername(ctx context.Context, username string) (directory.AuthUser, error)
	FindByEmail(ctx context.Context, email string) ([]directory.AuthUser, error)
	// SetLocked flips the locked flag. Used by the retry counter when the
	// failure threshold is reached and by administrative unlock.
	SetLocked(ctx context.Context, username string, locked bool) error
	Delete(ctx context.Context, username string) error
}
