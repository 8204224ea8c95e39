package expression

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time assertion that PostgresStore satisfies the Store interface.
var _ Store = (*PostgresStore)(nil)

const ddlOverrides = `
CREATE TABLE IF NOT EXISTS expression_overrides (
    name_key    TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL,
    expression  TEXT         NOT NULL DEFAULT '',
    locked      BOOLEAN      NOT NULL DEFAULT FALSE,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates the expression_overrides table if it does not exist.
// It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlOverrides); err != nil {
		return fmt.Errorf("expression migrate: %w", err)
	}
	return nil
}

// PostgresStore is the PostgreSQL-backed implementation of [Store]. It holds
// a single [pgxpool.Pool]; all operations are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore establishes a connection pool to the PostgreSQL database
// at dsn and runs [Migrate] to ensure the overrides table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("expression store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("expression store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("expression store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("expression store: migrate: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping probes the database connection, for readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, name string) (Override, error) {
	const q = `
SELECT name, expression, locked, updated_at
FROM expression_overrides
WHERE name_key = $1`

	var o Override
	err := s.pool.QueryRow(ctx, q, strings.ToLower(name)).
		Scan(&o.Name, &o.Expression, &o.Locked, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Override{}, ErrNotFound
	}
	if err != nil {
		return Override{}, fmt.Errorf("expression store: get %q: %w", name, err)
	}
	return o, nil
}

// Set implements [Store.Set].
func (s *PostgresStore) Set(ctx context.Context, name, expr string) error {
	const q = `
INSERT INTO expression_overrides (name_key, name, expression, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (name_key) DO UPDATE
SET name = EXCLUDED.name, expression = EXCLUDED.expression, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, strings.ToLower(name), name, expr); err != nil {
		return fmt.Errorf("expression store: set %q: %w", name, err)
	}
	return nil
}

// SetLocked implements [Store.SetLocked].
func (s *PostgresStore) SetLocked(ctx context.Context, name string, locked bool) error {
	const q = `
UPDATE expression_overrides
SET locked = $2, updated_at = now()
WHERE name_key = $1`

	tag, err := s.pool.Exec(ctx, q, strings.ToLower(name), locked)
	if err != nil {
		return fmt.Errorf("expression store: lock %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements [Store.Delete].
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	const q = `DELETE FROM expression_overrides WHERE name_key = $1`

	tag, err := s.pool.Exec(ctx, q, strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("expression store: delete %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context) ([]Override, error) {
	const q = `
SELECT name, expression, locked, updated_at
FROM expression_overrides
ORDER BY name_key`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("expression store: list: %w", err)
	}
	defer rows.Close()

	var result []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.Name, &o.Expression, &o.Locked, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("expression store: scan: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expression store: rows: %w", err)
	}
	return result, nil
}
