package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"signon/internal/directory"
)

// PostgresUserStore persists local accounts in PostgreSQL.
// This store is pure I/O; locking policy belongs to the retries service.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const userColumns = `username, password_hash, first_name, last_name, email, email_verified,
		secondary_email, secondary_email_verified, mobile, mobile_verified,
		mfa_preference, locked, enabled, master, alias_source, password_expiry, last_logged_in, authorities`

func (s *PostgresUserStore) Save(ctx context.Context, user directory.AuthUser) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (upper($1), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			email_verified = EXCLUDED.email_verified,
			secondary_email = EXCLUDED.secondary_email,
			secondary_email_verified = EXCLUDED.secondary_email_verified,
			mobile = EXCLUDED.mobile,
			mobile_verified = EXCLUDED.mobile_verified,
			mfa_preference = EXCLUDED.mfa_preference,
			locked = EXCLUDED.locked,
			enabled = EXCLUDED.enabled,
			master = EXCLUDED.master,
			alias_source = EXCLUDED.alias_source,
			password_expiry = EXCLUDED.password_expiry,
			last_logged_in = EXCLUDED.last_logged_in,
			authorities = EXCLUDED.authorities
	`
	_, err := s.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.FirstName, user.LastName,
		user.Email, user.EmailVerified,
		user.SecondaryEmail, user.SecondaryEmailVerified,
		user.Mobile, user.MobileVerified,
		string(user.MfaPreference), user.Locked, user.Enabled, user.Master,
		string(user.AliasSource), user.PasswordExpiry, user.LastLoggedIn,
		pq.Array(user.Authorities),
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByUsername(ctx context.Context, username string) (directory.AuthUser, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = upper($1)`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return directory.AuthUser{}, ErrNotFound
		}
		return directory.AuthUser{}, fmt.Errorf("find user by username: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) ([]directory.AuthUser, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) AND email_verified`
	rows, err := s.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("find users by email: %w", err)
	}
	defer rows.Close()

	var users []directory.AuthUser
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresUserStore) SetLocked(ctx context.Context, username string, locked bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET locked = $2 WHERE username = upper($1)`, username, locked)
	if err != nil {
		return fmt.Errorf("set locked: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set locked rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresUserStore) Delete(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = upper($1)`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

type userRow interface {
	Scan(dest ...any) error
}

func scanUser(row userRow) (directory.AuthUser, error) {
	var user directory.AuthUser
	var preference, aliasSource string
	var authorities pq.StringArray
	err := row.Scan(
		&user.Username, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Email, &user.EmailVerified,
		&user.SecondaryEmail, &user.SecondaryEmailVerified,
		&user.Mobile, &user.MobileVerified,
		&preference, &user.Locked, &user.Enabled, &user.Master,
		&aliasSource, &user.PasswordExpiry, &user.LastLoggedIn, &authorities,
	)
	if err != nil {
		return directory.AuthUser{}, err
	}
	user.MfaPreference = directory.MfaPreference(preference)
	user.AliasSource = directory.Source(aliasSource)
	user.Authorities = authorities
	return user, nil
}
