package identity

import (
	"context"

	"signon/internal/directory"
	dErrors "signon/pkg/domain-errors"
)

// LockStore is the slice of the local user store the locker writes through.
type LockStore interface {
	SetLocked(ctx context.Context, username string, locked bool) error
	Save(ctx context.Context, user directory.AuthUser) error
}

// MasterLookup finds the owning record for a username.
type MasterLookup interface {
	ResolveMaster(ctx context.Context, username string) (Identity, error)
}

// Locker flips the locked flag on the local record. Accounts mastered in
// another directory may have no local row yet; the lock then creates a
// non-master alias row, since the lock must hold locally regardless of what
// the owning system reports.
type Locker struct {
	store    LockStore
	resolver MasterLookup
}

func NewLocker(store LockStore, resolver MasterLookup) *Locker {
	return &Locker{store: store, resolver: resolver}
}

func (l *Locker) SetLocked(ctx context.Context, username string, locked bool) error {
	err := l.store.SetLocked(ctx, username, locked)
	if err == nil || !dErrors.Is(err, dErrors.CodeNotFound) {
		return err
	}

	id, err := l.resolver.ResolveMaster(ctx, username)
	if err != nil {
		return err
	}
	return l.store.Save(ctx, directory.AuthUser{
		Username:    id.Username,
		Enabled:     true,
		Master:      false,
		AliasSource: id.Source,
		Locked:      locked,
	})
}
