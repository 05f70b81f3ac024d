// Package postgres is the noncestore.Store backend shared across server
// replicas — spec.md §5 requires this whenever the service is not running
// as a single process.
//
// Adapted from the teacher's pkg/storage/postgres/nonces.go, whose
// CheckAndStore ran an explicit SELECT-then-INSERT inside a transaction.
// That shape matches PostgreSQL's session replay needs but is not the
// atomic "insert-if-absent" primitive spec.md §4.1 asks for (two concurrent
// requests with the same nonce could both pass the SELECT before either
// commits). This version instead uses a single `INSERT ... ON CONFLICT DO
// UPDATE ... WHERE expired` statement, atomic at the single-statement
// level: a new key or an expired one is (re)claimed and counts as first
// use, and "0 rows affected" means "already used" — closer to the teacher's own Redis backend
// sketch for other stores (`SET NX EX`, see spec.md §4.1) than to the
// teacher's Postgres nonce table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements noncestore.Store against a `nonces` table with columns
// (key text primary key, expires_at timestamptz).
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool. The pool is owned by the caller;
// Close is a no-op here (the server closes the shared pool once).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FirstUse implements noncestore.Store.
func (s *Store) FirstUse(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	expiresAt := time.Now().Add(ttl)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO nonces (key, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
			SET expires_at = EXCLUDED.expires_at
			WHERE nonces.expires_at < now()
	`, key, expiresAt)
	if err != nil {
		return false, fmt.Errorf("noncestore/postgres: first use: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }

// DeleteExpired removes nonce rows past their TTL. Nothing in this
// repository calls it on a schedule: expired rows remain in the table until
// it is called, although FirstUse reclaims an expired key when it is
// presented again.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM nonces WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("noncestore/postgres: delete expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
