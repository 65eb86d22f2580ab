package token

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists tokens in PostgreSQL. The unique index on
// (username, token_type) makes Replace a single atomic upsert, and Consume is
// a DELETE .. RETURNING so concurrent consumers cannot both win.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Replace(ctx context.Context, t SecurityToken) error {
	query := `
		INSERT INTO user_tokens (token_value, token_type, username, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username, token_type) DO UPDATE SET
			token_value = EXCLUDED.token_value,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.ExecContext(ctx, query, t.Value, string(t.Type), t.Username, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("replace token: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, tokenType Type, value string) (SecurityToken, error) {
	query := `
		SELECT token_value, token_type, username, created_at, expires_at
		FROM user_tokens
		WHERE token_value = $1 AND token_type = $2
	`
	return scanToken(s.db.QueryRowContext(ctx, query, value, string(tokenType)))
}

func (s *PostgresStore) Consume(ctx context.Context, tokenType Type, value string) (SecurityToken, error) {
	query := `
		DELETE FROM user_tokens
		WHERE token_value = $1 AND token_type = $2
		RETURNING token_value, token_type, username, created_at, expires_at
	`
	return scanToken(s.db.QueryRowContext(ctx, query, value, string(tokenType)))
}

func (s *PostgresStore) Delete(ctx context.Context, tokenType Type, value string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE token_value = $1 AND token_type = $2`, value, string(tokenType))
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteForUser(ctx context.Context, username string, tokenType Type) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE username = $1 AND token_type = $2`, username, string(tokenType))
	if err != nil {
		return fmt.Errorf("delete token for user: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens past their expiry; run from the scheduled
// cleanup job, not from login flows.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}

type tokenRow interface {
	Scan(dest ...any) error
}

func scanToken(row tokenRow) (SecurityToken, error) {
	var t SecurityToken
	var tokenType string
	if err := row.Scan(&t.Value, &tokenType, &t.Username, &t.CreatedAt, &t.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return SecurityToken{}, ErrNotFound
		}
		return SecurityToken{}, fmt.Errorf("scan token: %w", err)
	}
	t.Type = Type(tokenType)
	return t, nil
}
