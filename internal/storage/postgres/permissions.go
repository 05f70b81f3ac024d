package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/zeta/internal/storage"
)

// PermissionsStore implements storage.PermissionsStore against the
// event_permissions table, addressed by a SHA-256 hash of the target's
// PEM public key rather than the key itself, matching
// original_source's permissions_store.py.
type PermissionsStore struct {
	db *pgxpool.Pool
}

// NewPermissionsStore wraps an existing pool.
func NewPermissionsStore(db *pgxpool.Pool) *PermissionsStore {
	return &PermissionsStore{db: db}
}

func (s *PermissionsStore) LoadOwnerPublicKeyHash(ctx context.Context, eventID string) ([]byte, bool, error) {
	var h []byte
	err := s.db.QueryRow(ctx, `SELECT owner_public_key_hash FROM event_data WHERE event_id = $1`, eventID).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage/postgres: load owner key hash: %w", err)
	}
	return h, true, nil
}

func (s *PermissionsStore) LoadPermissions(ctx context.Context, eventID string, publicKeyHash []byte) (*storage.PermissionFields, error) {
	var f storage.PermissionFields
	err := s.db.QueryRow(ctx, `
		SELECT cancel_ticket, see_ticket_flag, update_ticket_flag,
			authorize_registration, see_stamped_ticket, stamp_ticket
		FROM event_permissions
		WHERE event_id = $1 AND public_key_hash = $2
	`, eventID, publicKeyHash).Scan(
		&f.CancelTicket, &f.SeeTicketFlag, &f.UpdateTicketFlag,
		&f.AuthorizeRegistration, &f.SeeStampedTicket, &f.StampTicket,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: load permissions: %w", err)
	}
	return &f, nil
}

func (s *PermissionsStore) UpdatePermissions(ctx context.Context, eventID string, publicKeyHash []byte, fields storage.PermissionFields) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO event_permissions (
			event_id, public_key_hash, cancel_ticket, see_ticket_flag,
			update_ticket_flag, authorize_registration, see_stamped_ticket, stamp_ticket
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id, public_key_hash) DO UPDATE SET
			cancel_ticket = EXCLUDED.cancel_ticket,
			see_ticket_flag = EXCLUDED.see_ticket_flag,
			update_ticket_flag = EXCLUDED.update_ticket_flag,
			authorize_registration = EXCLUDED.authorize_registration,
			see_stamped_ticket = EXCLUDED.see_stamped_ticket,
			stamp_ticket = EXCLUDED.stamp_ticket
	`, eventID, publicKeyHash, fields.CancelTicket, fields.SeeTicketFlag,
		fields.UpdateTicketFlag, fields.AuthorizeRegistration, fields.SeeStampedTicket, fields.StampTicket)
	if err != nil {
		return fmt.Errorf("storage/postgres: update permissions: %w", err)
	}
	return nil
}

func (s *PermissionsStore) RemovePermissions(ctx context.Context, eventID string, publicKeyHash []byte) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM event_permissions WHERE event_id = $1 AND public_key_hash = $2
	`, eventID, publicKeyHash)
	if err != nil {
		return fmt.Errorf("storage/postgres: remove permissions: %w", err)
	}
	return nil
}
