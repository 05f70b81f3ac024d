// Package event implements spec.md §4.4's event model: the public event
// row a client creates, searches, and loads, plus the owner-only lookups
// (ticket-granting key, owner public key) ticket and permissions logic
// depend on.
//
// Grounded on original_source's app/data/models/event.py, generalized
// from a pydantic BaseModel with storage-module functions to a Go struct
// with methods taking a storage.EventStore.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/storage"
)

// TransferLimit is the default maximum ticket transfer count, the same
// 6-bit ceiling internal/ticket uses for a ticket's version counter.
const TransferLimit = 1<<6 - 1

const (
	MinTickets = 1
	MaxTickets = 65_536

	defaultDuration = 24 * time.Hour
)

// Event is the public event model.
type Event struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Tickets       int     `json:"tickets"`
	Issued        int     `json:"issued"`
	Start         float64 `json:"start"`
	Finish        float64 `json:"finish"`
	Restricted    bool    `json:"restricted"`
	TransferLimit int     `json:"transfer_limit"`
	EnableFlags   bool    `json:"enable_flags"`
}

// New builds an Event with a fresh ID and spec.md §4.4 defaults applied,
// ready for Create.
func New(name, description string, tickets int, restricted bool, transferLimit int, enableFlags bool) (*Event, error) {
	if tickets < MinTickets || tickets > MaxTickets {
		return nil, apierr.New(apierr.Validation, "tickets out of range")
	}
	if transferLimit < 0 || transferLimit > TransferLimit {
		// clamp rather than reject: resolves spec.md's open question on
		// out-of-range transfer_limit values.
		transferLimit = clamp(transferLimit, 0, TransferLimit)
	}

	now := float64(time.Now().Unix())
	return &Event{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   description,
		Tickets:       tickets,
		Issued:        0,
		Start:         now,
		Finish:        now + defaultDuration.Seconds(),
		Restricted:    restricted,
		TransferLimit: transferLimit,
		EnableFlags:   enableFlags,
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Create persists the event alongside a freshly generated ticket-granting
// key and the owner's public key.
func (e *Event) Create(ctx context.Context, events storage.EventStore, ownerPublicKey string) error {
	key, err := cryptoutil.GenerateEventKey()
	if err != nil {
		return apierr.Wrap(apierr.Internal, "generate event key", err)
	}

	rec := storage.EventRecord{
		ID: e.ID, Name: e.Name, Description: e.Description,
		Tickets: e.Tickets, Issued: e.Issued, Start: e.Start, Finish: e.Finish,
		Restricted: e.Restricted, TransferLimit: e.TransferLimit, EnableFlags: e.EnableFlags,
	}
	if err := events.Create(ctx, rec, key, ownerPublicKey); err != nil {
		return apierr.Wrap(apierr.Internal, "create event", err)
	}
	return nil
}

// Load fetches an event by ID.
func Load(ctx context.Context, events storage.EventStore, eventID string) (*Event, error) {
	rec, err := events.Load(ctx, eventID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "load event", err)
	}
	if rec == nil {
		return nil, apierr.New(apierr.NotFound, "event not found")
	}
	return fromRecord(rec), nil
}

// Search looks up events by a case-insensitive substring match on name.
func Search(ctx context.Context, events storage.EventStore, text string, limit int) ([]Event, error) {
	recs, err := events.Search(ctx, text, limit)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "search events", err)
	}
	out := make([]Event, len(recs))
	for i := range recs {
		out[i] = *fromRecord(&recs[i])
	}
	return out, nil
}

// Delete removes an event and its associated data.
func Delete(ctx context.Context, events storage.EventStore, eventID string) error {
	ok, err := events.Delete(ctx, eventID)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "delete event", err)
	}
	if !ok {
		return apierr.New(apierr.NotFound, "event not found")
	}
	return nil
}

// GetKey returns an event's ticket-granting symmetric key.
func GetKey(ctx context.Context, events storage.EventStore, eventID string) ([]byte, error) {
	key, err := events.LoadEventKey(ctx, eventID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "load event key", err)
	}
	if key == nil {
		return nil, apierr.New(apierr.NotFound, "event not found")
	}
	return key, nil
}

// GetOwnerPublicKey returns the PEM public key of the event's owner.
func GetOwnerPublicKey(ctx context.Context, events storage.EventStore, eventID string) (string, error) {
	pk, err := events.LoadOwnerPublicKey(ctx, eventID)
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "load owner public key", err)
	}
	if pk == "" {
		return "", apierr.New(apierr.NotFound, "event not found")
	}
	return pk, nil
}

func fromRecord(rec *storage.EventRecord) *Event {
	return &Event{
		ID: rec.ID, Name: rec.Name, Description: rec.Description,
		Tickets: rec.Tickets, Issued: rec.Issued, Start: rec.Start, Finish: rec.Finish,
		Restricted: rec.Restricted, TransferLimit: rec.TransferLimit, EnableFlags: rec.EnableFlags,
	}
}
