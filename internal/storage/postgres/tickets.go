package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/zeta/internal/metrics"
)

// TicketStore implements storage.TicketStore against the event_data
// table's state_bytes and flag_bytes columns: one byte per issued ticket
// number, indexed by Postgres's get_byte/set_byte bytea functions exactly
// as original_source's ticket_store.py does.
type TicketStore struct {
	db *pgxpool.Pool
}

// NewTicketStore wraps an existing pool.
func NewTicketStore(db *pgxpool.Pool) *TicketStore {
	return &TicketStore{db: db}
}

// Issue atomically reserves the next ticket number by incrementing
// events.issued, conditioned on issued < tickets so a sold-out event
// cannot over-issue even under concurrent registration.
func (s *TicketStore) Issue(ctx context.Context, eventID string) (int, bool, error) {
	start := time.Now()
	var issued int
	err := s.db.QueryRow(ctx, `
		UPDATE events
		SET issued = issued + 1
		WHERE id = $1 AND issued < tickets
		RETURNING issued
	`, eventID).Scan(&issued)
	metrics.StorageQueryDuration.WithLabelValues("tickets", "issue").Observe(time.Since(start).Seconds())

	if errors.Is(err, pgx.ErrNoRows) {
		metrics.StorageCASAttempts.WithLabelValues("events", "conflict").Inc()
		metrics.GetGlobalCollector().RecordCASConflict()
		return 0, false, nil
	}
	if err != nil {
		metrics.StorageCASAttempts.WithLabelValues("events", "error").Inc()
		return 0, false, fmt.Errorf("storage/postgres: issue ticket: %w", err)
	}
	metrics.StorageCASAttempts.WithLabelValues("events", "applied").Inc()
	return issued - 1, true, nil
}

// Reissue advances a ticket's version, compare-and-set on the current
// byte equalling version exactly. The join against events enforces
// number < issued so a never-issued slot can't be reissued.
func (s *TicketStore) Reissue(ctx context.Context, eventID string, number, version int) (bool, error) {
	start := time.Now()
	tag, err := s.db.Exec(ctx, `
		UPDATE event_data
		SET state_bytes = set_byte(state_bytes, $1, $2)
		FROM events
		WHERE event_data.event_id = events.id
		  AND event_data.event_id = $3
		  AND get_byte(event_data.state_bytes, $1) = $4
		  AND $1 < events.issued
	`, number, version+1, eventID, version)
	metrics.StorageQueryDuration.WithLabelValues("tickets", "reissue").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "error").Inc()
		return false, fmt.Errorf("storage/postgres: reissue ticket: %w", err)
	}
	applied := tag.RowsAffected() == 1
	if applied {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "applied").Inc()
	} else {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "conflict").Inc()
		metrics.GetGlobalCollector().RecordCASConflict()
	}
	return applied, nil
}

// AdvanceState sets the ticket's state byte to data, conditioned on the
// current byte being strictly below threshold, so redeem/stamp/cancel
// can never regress a ticket's state under concurrent requests. The join
// against events enforces number < issued.
func (s *TicketStore) AdvanceState(ctx context.Context, eventID string, number, data, threshold int) (bool, error) {
	start := time.Now()
	tag, err := s.db.Exec(ctx, `
		UPDATE event_data
		SET state_bytes = set_byte(state_bytes, $1, $2)
		FROM events
		WHERE event_data.event_id = events.id
		  AND event_data.event_id = $3
		  AND get_byte(event_data.state_bytes, $1) < $4
		  AND $1 < events.issued
	`, number, data, eventID, threshold)
	metrics.StorageQueryDuration.WithLabelValues("tickets", "advance_state").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "error").Inc()
		return false, fmt.Errorf("storage/postgres: advance ticket state: %w", err)
	}
	applied := tag.RowsAffected() == 1
	if applied {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "applied").Inc()
	} else {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "conflict").Inc()
		metrics.GetGlobalCollector().RecordCASConflict()
	}
	return applied, nil
}

// LoadStateByte returns the ticket's current state byte, or ok=false if
// number has not yet been issued.
func (s *TicketStore) LoadStateByte(ctx context.Context, eventID string, number int) (int, bool, error) {
	start := time.Now()
	var b int
	err := s.db.QueryRow(ctx, `
		SELECT get_byte(event_data.state_bytes, $1)
		FROM event_data
		JOIN events ON events.id = event_data.event_id
		WHERE event_data.event_id = $2 AND $1 < events.issued
	`, number, eventID).Scan(&b)
	metrics.StorageQueryDuration.WithLabelValues("tickets", "load_state_byte").Observe(time.Since(start).Seconds())

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage/postgres: load state byte: %w", err)
	}
	return b, true, nil
}

// LoadFlagByte returns the ticket's current flag byte. ok is false if the
// ticket is not yet issued or the event has flag_bytes unset (flags
// disabled), matching spec.md §4.6.8's requirement that /flag operations
// on a flags-disabled event fail rather than silently reading zero.
func (s *TicketStore) LoadFlagByte(ctx context.Context, eventID string, number int) (int, bool, error) {
	start := time.Now()
	var b *int
	err := s.db.QueryRow(ctx, `
		SELECT get_byte(event_data.flag_bytes, $1)
		FROM event_data
		JOIN events ON events.id = event_data.event_id
		WHERE event_data.event_id = $2 AND $1 < events.issued AND event_data.flag_bytes IS NOT NULL
	`, number, eventID).Scan(&b)
	metrics.StorageQueryDuration.WithLabelValues("tickets", "load_flag_byte").Observe(time.Since(start).Seconds())

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage/postgres: load flag byte: %w", err)
	}
	if b == nil {
		return 0, false, nil
	}
	return *b, true, nil
}

// UpdateFlagByte performs an atomic read-modify-write of the flag byte in
// a single statement: new = (old & mask) | value. This lets a caller flip
// or clear individual bits (e.g. the public-visibility high bit) without
// a separate read, so concurrent /flag calls serialize through Postgres
// rather than racing in application code.
func (s *TicketStore) UpdateFlagByte(ctx context.Context, eventID string, number int, mask, value byte) (int, bool, error) {
	start := time.Now()
	var b *int
	err := s.db.QueryRow(ctx, `
		UPDATE event_data
		SET flag_bytes = set_byte(flag_bytes, $1, (get_byte(flag_bytes, $1) & $2) | $3)
		FROM events
		WHERE event_data.event_id = events.id
		  AND event_data.event_id = $4
		  AND $1 < events.issued
		  AND event_data.flag_bytes IS NOT NULL
		RETURNING get_byte(event_data.flag_bytes, $1)
	`, number, int(mask), int(value), eventID).Scan(&b)
	metrics.StorageQueryDuration.WithLabelValues("tickets", "update_flag_byte").Observe(time.Since(start).Seconds())

	if errors.Is(err, pgx.ErrNoRows) {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "conflict").Inc()
		metrics.GetGlobalCollector().RecordCASConflict()
		return 0, false, nil
	}
	if err != nil {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "error").Inc()
		return 0, false, fmt.Errorf("storage/postgres: update flag byte: %w", err)
	}
	if b == nil {
		metrics.StorageCASAttempts.WithLabelValues("event_data", "conflict").Inc()
		metrics.GetGlobalCollector().RecordCASConflict()
		return 0, false, nil
	}
	metrics.StorageCASAttempts.WithLabelValues("event_data", "applied").Inc()
	return *b, true, nil
}
