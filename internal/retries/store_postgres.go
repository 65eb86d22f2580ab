package retries

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresStore persists retry counts in PostgreSQL. The upsert with
// RETURNING gives each concurrent failure a distinct count without a
// separate read.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) IncrementAndGet(ctx context.Context, username string, scope Scope) (int, error) {
	query := `
		INSERT INTO user_retries (username, scope, retry_count, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (username, scope) DO UPDATE SET
			retry_count = user_retries.retry_count + 1,
			updated_at = NOW()
		RETURNING retry_count
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, strings.ToUpper(username), string(scope)).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment retries: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Reset(ctx context.Context, username string, scope Scope) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_retries WHERE username = $1 AND scope = $2`,
		strings.ToUpper(username), string(scope))
	if err != nil {
		return fmt.Errorf("reset retries: %w", err)
	}
	return nil
}
