package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"signon/internal/directory"
)

// Directory adapts the user store to the directory boundary. Passwords are
// bcrypt hashes checked locally; there is no upstream to be unavailable, so
// store failures surface as internal errors rather than outages.
type Directory struct {
	store UserStore
}

func NewDirectory(store UserStore) *Directory {
	return &Directory{store: store}
}

func (d *Directory) Source() directory.Source { return directory.SourceAuth }

func (d *Directory) Authenticate(ctx context.Context, username, password string) (bool, error) {
	user, err := d.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if user.PasswordHash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil, nil
}

func (d *Directory) FindByUsername(ctx context.Context, username string) (*directory.Record, error) {
	user, err := d.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &directory.Record{Source: directory.SourceAuth, Auth: &user}, nil
}

func (d *Directory) FindByEmail(ctx context.Context, email string) ([]directory.Record, error) {
	users, err := d.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	records := make([]directory.Record, 0, len(users))
	for i := range users {
		records = append(records, directory.Record{Source: directory.SourceAuth, Auth: &users[i]})
	}
	return records, nil
}

// HashPassword produces the bcrypt hash stored for local accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
