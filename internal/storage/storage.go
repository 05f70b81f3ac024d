// Package storage declares the persistence interfaces ZETA's domain
// packages (internal/ticket, internal/event, internal/permissions) depend
// on. storage/postgres provides the only implementation; the interfaces
// exist so domain logic never imports pgx directly, mirroring the
// teacher's pkg/storage separation between its storage.Store interfaces
// and pkg/storage/postgres's concrete implementation.
package storage

import "context"

// EventRecord is the public row of the events table (spec.md §4.4's
// create/search/validate results).
type EventRecord struct {
	ID            string
	Name          string
	Description   string
	Tickets       int
	Issued        int
	Start         float64
	Finish        float64
	Restricted    bool
	TransferLimit int
	EnableFlags   bool
}

// EventStore persists event rows and the per-event data event.go reads
// (ticket-granting key, owner public key). Grounded on the teacher's
// DIDStore shape (pkg/storage/postgres/dids.go) generalized from DID
// documents to events, and on original_source's event_store.py for the
// exact operation set.
type EventStore interface {
	Create(ctx context.Context, e EventRecord, eventKey []byte, ownerPublicKey string) error
	Load(ctx context.Context, eventID string) (*EventRecord, error)
	Search(ctx context.Context, text string, limit int) ([]EventRecord, error)
	Delete(ctx context.Context, eventID string) (bool, error)

	LoadEventKey(ctx context.Context, eventID string) ([]byte, error)
	LoadOwnerPublicKey(ctx context.Context, eventID string) (string, error)
	LoadOwnerPublicKeyHash(ctx context.Context, eventID string) ([]byte, error)
}

// TicketStore persists the per-ticket state byte array described in
// spec.md §4.7 (one state byte per issued ticket number, packed into an
// event_data.state_bytes column). Grounded on original_source's
// ticket_store.py; every mutating method is a single conditional SQL
// UPDATE so concurrent requests serialize through the database rather
// than through application-level locking.
type TicketStore interface {
	// Issue atomically increments the event's issued counter if capacity
	// remains, returning the newly issued ticket number (0-based).
	Issue(ctx context.Context, eventID string) (number int, ok bool, err error)

	// Reissue advances a ticket's low 6 version bits from version to
	// version+1, conditioned on the stored byte currently equalling
	// version exactly (compare-and-set), and on number being within the
	// event's issued range.
	Reissue(ctx context.Context, eventID string, number, version int) (bool, error)

	// AdvanceState sets the ticket's full state byte to data, conditioned
	// on the current byte being strictly less than threshold and on
	// number being within the event's issued range. Used for
	// redeem/stamp/cancel, each monotonically increasing state.
	AdvanceState(ctx context.Context, eventID string, number, data, threshold int) (bool, error)

	// LoadStateByte returns the current state byte, or ok=false if the
	// ticket (or event) does not exist, or number is not yet issued.
	LoadStateByte(ctx context.Context, eventID string, number int) (byte int, ok bool, err error)

	// LoadFlagByte returns the current flag byte for number, or ok=false
	// if not found or flags are not enabled for the event.
	LoadFlagByte(ctx context.Context, eventID string, number int) (byte int, ok bool, err error)

	// UpdateFlagByte performs an atomic read-modify-write of the flag
	// byte: new = (old & mask) | value. Returns the resulting byte.
	UpdateFlagByte(ctx context.Context, eventID string, number int, mask, value byte) (newByte int, ok bool, err error)
}

// PermissionsStore persists the sparse per-(event, public key) capability
// rows spec.md §4.5 describes. Grounded on original_source's
// permissions_store.py: rows are addressed by a hash of the PEM public
// key, never the key material itself, and an all-false row is deleted
// rather than stored.
type PermissionsStore interface {
	LoadOwnerPublicKeyHash(ctx context.Context, eventID string) ([]byte, bool, error)
	LoadPermissions(ctx context.Context, eventID string, publicKeyHash []byte) (*PermissionFields, error)
	UpdatePermissions(ctx context.Context, eventID string, publicKeyHash []byte, fields PermissionFields) error
	RemovePermissions(ctx context.Context, eventID string, publicKeyHash []byte) error
}

// PermissionFields is the sparse capability row shape, column-for-column
// matched to original_source's Permissions pydantic model so
// internal/permissions can copy field values directly.
type PermissionFields struct {
	CancelTicket           bool
	SeeTicketFlag          bool
	UpdateTicketFlag       bool
	AuthorizeRegistration  bool
	SeeStampedTicket       bool
	StampTicket            bool
}

// AllFalse reports whether every capability is unset, the condition
// original_source's Permissions.update uses to delete a row instead of
// storing an all-false one.
func (f PermissionFields) AllFalse() bool {
	return !f.CancelTicket && !f.SeeTicketFlag && !f.UpdateTicketFlag &&
		!f.AuthorizeRegistration && !f.SeeStampedTicket && !f.StampTicket
}
