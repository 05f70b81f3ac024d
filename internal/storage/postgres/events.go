// Package postgres implements internal/storage's interfaces against
// PostgreSQL, adapted from the teacher's pkg/storage/postgres sub-stores
// (DIDStore, NonceStore) which follow the same "one struct wrapping
// *pgxpool.Pool, one method per query" shape.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/zeta/internal/storage"
)

// EventStore implements storage.EventStore.
type EventStore struct {
	db *pgxpool.Pool
}

// NewEventStore wraps an existing pool.
func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

// Create inserts both the public events row and its non-public
// event_data row in a single transaction, mirroring original_source's
// event_store.create which writes both tables under one connection.
func (s *EventStore) Create(ctx context.Context, e storage.EventRecord, eventKey []byte, ownerPublicKey string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage/postgres: begin create event: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, name, description, tickets, issued, start_time, finish_time, restricted, transfer_limit, enable_flags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Name, e.Description, e.Tickets, e.Issued, e.Start, e.Finish, e.Restricted, e.TransferLimit, e.EnableFlags)
	if err != nil {
		return fmt.Errorf("storage/postgres: insert event: %w", err)
	}

	ownerHash := ownerPublicKeyHash(ownerPublicKey)
	stateBytes := make([]byte, e.Tickets)

	var flagBytes []byte
	if e.EnableFlags {
		flagBytes = make([]byte, e.Tickets)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO event_data (event_id, event_key, owner_public_key, owner_public_key_hash, state_bytes, flag_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, eventKey, ownerPublicKey, ownerHash, stateBytes, flagBytes)
	if err != nil {
		return fmt.Errorf("storage/postgres: insert event_data: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage/postgres: commit create event: %w", err)
	}
	return nil
}

// Load returns the public row for eventID, or nil if not found.
func (s *EventStore) Load(ctx context.Context, eventID string) (*storage.EventRecord, error) {
	var e storage.EventRecord
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, tickets, issued, start_time, finish_time, restricted, transfer_limit, enable_flags
		FROM events WHERE id = $1
	`, eventID).Scan(&e.ID, &e.Name, &e.Description, &e.Tickets, &e.Issued, &e.Start, &e.Finish, &e.Restricted, &e.TransferLimit, &e.EnableFlags)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: load event: %w", err)
	}
	return &e, nil
}

// Search does a case-insensitive substring match on event name, matching
// original_source's `name ILIKE %text%` query.
func (s *EventStore) Search(ctx context.Context, text string, limit int) ([]storage.EventRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, tickets, issued, start_time, finish_time, restricted, transfer_limit, enable_flags
		FROM events WHERE name ILIKE '%' || $1 || '%' LIMIT $2
	`, text, limit)
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: search events: %w", err)
	}
	defer rows.Close()

	var out []storage.EventRecord
	for rows.Next() {
		var e storage.EventRecord
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Tickets, &e.Issued, &e.Start, &e.Finish, &e.Restricted, &e.TransferLimit, &e.EnableFlags); err != nil {
			return nil, fmt.Errorf("storage/postgres: scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the events row; event_data and event_permissions rows
// cascade-delete via foreign key, matching original_source's comment
// that "event data row cascade deletes".
func (s *EventStore) Delete(ctx context.Context, eventID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return false, fmt.Errorf("storage/postgres: delete event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LoadEventKey returns the event's AES ticket-sealing key.
func (s *EventStore) LoadEventKey(ctx context.Context, eventID string) ([]byte, error) {
	var key []byte
	err := s.db.QueryRow(ctx, `SELECT event_key FROM event_data WHERE event_id = $1`, eventID).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: load event key: %w", err)
	}
	return key, nil
}

// LoadOwnerPublicKey returns the PEM public key of the event's owner.
func (s *EventStore) LoadOwnerPublicKey(ctx context.Context, eventID string) (string, error) {
	var pk string
	err := s.db.QueryRow(ctx, `SELECT owner_public_key FROM event_data WHERE event_id = $1`, eventID).Scan(&pk)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage/postgres: load owner public key: %w", err)
	}
	return pk, nil
}

// LoadOwnerPublicKeyHash returns the SHA-256 hash of the owner's public
// key, used for ownership checks without ever comparing raw PEM text.
func (s *EventStore) LoadOwnerPublicKeyHash(ctx context.Context, eventID string) ([]byte, error) {
	var h []byte
	err := s.db.QueryRow(ctx, `SELECT owner_public_key_hash FROM event_data WHERE event_id = $1`, eventID).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: load owner public key hash: %w", err)
	}
	return h, nil
}

func ownerPublicKeyHash(publicKeyPEM string) []byte {
	return cryptoHash(publicKeyPEM)
}
