// Package permissions implements spec.md §4.5's per-event capability
// model: the event owner holds every capability implicitly; everyone
// else's capabilities are a sparse row, absent entirely unless at least
// one capability is granted.
//
// Grounded on original_source's app/data/models/permissions.py: the
// field set, the owner-implicit-superuser rule, and the delete-on-
// all-false update behavior are carried over unchanged.
package permissions

import (
	"context"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/storage"
)

// Capability names Is authorized accepts, matching the field set of
// original_source's Permissions model field-for-field.
type Capability string

const (
	CancelTicket          Capability = "cancel_ticket"
	SeeTicketFlag         Capability = "see_ticket_flag"
	UpdateTicketFlag      Capability = "update_ticket_flag"
	AuthorizeRegistration Capability = "authorize_registration"
	SeeStampedTicket      Capability = "see_stamped_ticket"
	StampTicket           Capability = "stamp_ticket"
)

// Permissions is a fully-resolved capability set for one (event, public
// key) pair.
type Permissions struct {
	CancelTicket          bool `json:"cancel_ticket"`
	SeeTicketFlag         bool `json:"see_ticket_flag"`
	UpdateTicketFlag      bool `json:"update_ticket_flag"`
	AuthorizeRegistration bool `json:"authorize_registration"`
	SeeStampedTicket      bool `json:"see_stamped_ticket"`
	StampTicket           bool `json:"stamp_ticket"`
}

// IsOwner reports whether checkPublicKey is the event's owner, comparing
// SHA-256 hashes rather than raw PEM text.
func IsOwner(ctx context.Context, events storage.EventStore, eventID, checkPublicKey string) (bool, error) {
	ownerHash, err := events.LoadOwnerPublicKeyHash(ctx, eventID)
	if err != nil {
		return false, apierr.Wrap(apierr.Internal, "load owner key hash", err)
	}
	if ownerHash == nil {
		return false, apierr.New(apierr.NotFound, "event not found")
	}
	return bytesEqual(cryptoutil.SHA256Bytes([]byte(checkPublicKey)), ownerHash), nil
}

// Load resolves the full capability set for targetPublicKey: the event
// owner gets every capability; anyone else gets whatever sparse row is
// stored, or an all-false set if none exists.
func Load(ctx context.Context, store storage.PermissionsStore, eventID, targetPublicKey string) (*Permissions, error) {
	ownerHash, ok, err := store.LoadOwnerPublicKeyHash(ctx, eventID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "load owner key hash", err)
	}
	if !ok {
		return nil, apierr.New(apierr.NotFound, "event not found")
	}

	targetHash := cryptoutil.SHA256Bytes([]byte(targetPublicKey))
	if bytesEqual(ownerHash, targetHash) {
		return &Permissions{
			CancelTicket: true, SeeTicketFlag: true, UpdateTicketFlag: true,
			AuthorizeRegistration: true, SeeStampedTicket: true, StampTicket: true,
		}, nil
	}

	fields, err := store.LoadPermissions(ctx, eventID, targetHash)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "load permissions", err)
	}
	if fields == nil {
		return &Permissions{}, nil
	}
	return &Permissions{
		CancelTicket: fields.CancelTicket, SeeTicketFlag: fields.SeeTicketFlag,
		UpdateTicketFlag: fields.UpdateTicketFlag, AuthorizeRegistration: fields.AuthorizeRegistration,
		SeeStampedTicket: fields.SeeStampedTicket, StampTicket: fields.StampTicket,
	}, nil
}

// IsAuthorized reports whether a loaded Permissions set grants cap.
func (p *Permissions) IsAuthorized(cap Capability) bool {
	switch cap {
	case CancelTicket:
		return p.CancelTicket
	case SeeTicketFlag:
		return p.SeeTicketFlag
	case UpdateTicketFlag:
		return p.UpdateTicketFlag
	case AuthorizeRegistration:
		return p.AuthorizeRegistration
	case SeeStampedTicket:
		return p.SeeStampedTicket
	case StampTicket:
		return p.StampTicket
	default:
		return false
	}
}

// Update persists p for (eventID, targetPublicKey). A capability set with
// every field false is stored as no row at all, matching
// original_source's Permissions.update.
func Update(ctx context.Context, store storage.PermissionsStore, eventID, targetPublicKey string, p Permissions) error {
	targetHash := cryptoutil.SHA256Bytes([]byte(targetPublicKey))
	fields := storage.PermissionFields{
		CancelTicket: p.CancelTicket, SeeTicketFlag: p.SeeTicketFlag,
		UpdateTicketFlag: p.UpdateTicketFlag, AuthorizeRegistration: p.AuthorizeRegistration,
		SeeStampedTicket: p.SeeStampedTicket, StampTicket: p.StampTicket,
	}

	if fields.AllFalse() {
		if err := store.RemovePermissions(ctx, eventID, targetHash); err != nil {
			return apierr.Wrap(apierr.Internal, "remove permissions", err)
		}
		return nil
	}

	if err := store.UpdatePermissions(ctx, eventID, targetHash, fields); err != nil {
		return apierr.Wrap(apierr.Internal, "update permissions", err)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
