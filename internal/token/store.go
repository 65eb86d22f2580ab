package token

import (
	"context"

	dErrors "signon/pkg/domain-errors"
)

// ErrNotFound is returned by stores when no token matches. Expiry is a
// service-level concern: stores return expired tokens so the service can tell
// "expired" apart from "never existed".
var ErrNotFound = dErrors.New(dErrors.CodeTokenNotFound, "token not found")

// Store persists security tokens. Implementations must provide the atomicity
// each method documents; the service contains no locking of its own.
type Store interface {
	// Replace stores the token, atomically removing any existing live token
	// for the same (username, type). After two concurrent calls, exactly one
	// token survives and the other value is unreachable for Consume.
	Replace(ctx context.Context, t SecurityToken) error

	// Find loads a token without consuming it.
	Find(ctx context.Context, tokenType Type, value string) (SecurityToken, error)

	// Consume atomically deletes and returns the token. Of two concurrent
	// calls with the same value, exactly one receives the token; the other
	// receives ErrNotFound.
	Consume(ctx context.Context, tokenType Type, value string) (SecurityToken, error)

	// Delete removes a token if present. Deleting an absent token is not an
	// error.
	Delete(ctx context.Context, tokenType Type, value string) error

	// DeleteForUser removes the live token of a given type for a user, when
	// one exists. Needed where the caller knows the owner but not the value,
	// e.g. killing an undelivered MFA code on lockout.
	DeleteForUser(ctx context.Context, username string, tokenType Type) error
}
