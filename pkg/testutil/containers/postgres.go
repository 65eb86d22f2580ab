//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username                 TEXT PRIMARY KEY,
	password_hash            TEXT NOT NULL DEFAULT '',
	first_name               TEXT NOT NULL DEFAULT '',
	last_name                TEXT NOT NULL DEFAULT '',
	email                    TEXT NOT NULL DEFAULT '',
	email_verified           BOOLEAN NOT NULL DEFAULT FALSE,
	secondary_email          TEXT NOT NULL DEFAULT '',
	secondary_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	mobile                   TEXT NOT NULL DEFAULT '',
	mobile_verified          BOOLEAN NOT NULL DEFAULT FALSE,
	mfa_preference           TEXT NOT NULL DEFAULT 'EMAIL',
	locked                   BOOLEAN NOT NULL DEFAULT FALSE,
	enabled                  BOOLEAN NOT NULL DEFAULT TRUE,
	master                   BOOLEAN NOT NULL DEFAULT TRUE,
	alias_source             TEXT NOT NULL DEFAULT '',
	password_expiry          TIMESTAMPTZ,
	last_logged_in           TIMESTAMPTZ,
	authorities              TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS user_tokens (
	token_value TEXT NOT NULL,
	token_type  TEXT NOT NULL,
	username    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (token_value, token_type),
	UNIQUE (username, token_type)
);

CREATE TABLE IF NOT EXISTS user_retries (
	username    TEXT NOT NULL,
	scope       TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (username, scope)
);
`

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("signon"),
		tcpostgres.WithUsername("signon"),
		tcpostgres.WithPassword("signon"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// Truncate empties the given tables between tests.
func (c *PostgresContainer) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := c.DB.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}
