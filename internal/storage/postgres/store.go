package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection configuration. Adapted from the
// teacher's pkg/storage/postgres.Config.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MinConns int32
	MaxConns int32
}

// Store aggregates every sub-store ZETA's domain packages need, built
// from one shared connection pool. Adapted from the teacher's
// pkg/storage/postgres.Store, which aggregates SessionStore/NonceStore/
// DIDStore the same way.
type Store struct {
	pool        *pgxpool.Pool
	events      *EventStore
	tickets     *TicketStore
	permissions *PermissionsStore
}

// NewStore opens a pool against cfg and verifies connectivity before
// returning, exactly as the teacher's NewStore does.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: parse config: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage/postgres: ping: %w", err)
	}

	return &Store{
		pool:        pool,
		events:      &EventStore{db: pool},
		tickets:     &TicketStore{db: pool},
		permissions: &PermissionsStore{db: pool},
	}, nil
}

// Pool exposes the underlying pool, used by internal/noncestore/postgres
// and by internal/health's readiness probe.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Events() *EventStore           { return s.events }
func (s *Store) Tickets() *TicketStore         { return s.tickets }
func (s *Store) Permissions() *PermissionsStore { return s.permissions }

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }
