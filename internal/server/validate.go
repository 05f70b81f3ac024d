package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/permissions"
	"github.com/sage-x-project/zeta/internal/ticket"
)

type validateRequest struct {
	EventID         string `json:"event_id"`
	Ticket          string `json:"ticket"`
	CheckPublicKey  string `json:"check_public_key"`
	Stamp           bool   `json:"stamp"`
}

// Metadata is an opaque JSON value (spec.md §3), not necessarily a string.
type validateResponse struct {
	TicketNumber  int             `json:"ticket_number"`
	Redeemed      bool            `json:"redeemed"`
	Stamped       *bool           `json:"stamped"`
	Version       int             `json:"version"`
	TransferLimit int             `json:"transfer_limit"`
	Metadata      json.RawMessage `json:"metadata"`
}

// handleValidate implements spec.md §4.6.6 (a.k.a. legacy /verify):
// anyone may query a ticket's status under a claimed public key; only
// the visibility rule on the stamped field depends on who is asking.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[validateRequest](r, s.Nonces)
	if err != nil {
		writeError(w, s, err)
		return
	}

	t, err := ticket.Load(r.Context(), s.Tickets, s.Events, req.EventID, req.CheckPublicKey, req.Ticket)
	if err != nil {
		writeError(w, s, err)
		return
	}

	var redeemed, stamped bool

	if req.Stamp {
		perms, err := permissions.Load(r.Context(), s.Permissions, req.EventID, callerPublicKey)
		if err != nil {
			writeError(w, s, err)
			return
		}
		if !perms.IsAuthorized(permissions.StampTicket) {
			writeError(w, s, apierr.New(apierr.PermissionDenied, "not authorized to stamp tickets"))
			return
		}
		redeemed, stamped, err = t.Stamp(r.Context(), s.Tickets)
		if err != nil {
			writeError(w, s, err)
			return
		}
	} else {
		redeemed, stamped, err = t.Verify(r.Context(), s.Tickets)
		if err != nil {
			writeError(w, s, err)
			return
		}
	}

	visible, err := canSeeStamped(r.Context(), s, req.EventID, callerPublicKey, req.CheckPublicKey)
	if err != nil {
		writeError(w, s, err)
		return
	}

	var stampedOut *bool
	if visible {
		stampedOut = &stamped
	}

	writeResult(w, s, validateResponse{
		TicketNumber:  t.Number + 1,
		Redeemed:      redeemed,
		Stamped:       stampedOut,
		Version:       t.Version + 1,
		TransferLimit: t.TransferLimit,
		Metadata:      t.Metadata,
	})
}

// canSeeStamped implements spec.md §4.6.6's visibility rule: the holder,
// the event owner, and anyone with see_stamped_ticket may see the
// stamped field; everyone else gets null.
func canSeeStamped(ctx context.Context, s *Server, eventID, callerPublicKey, holderPublicKey string) (bool, error) {
	if callerPublicKey == holderPublicKey {
		return true, nil
	}
	isOwner, err := permissions.IsOwner(ctx, s.Events, eventID, callerPublicKey)
	if err != nil {
		return false, err
	}
	if isOwner {
		return true, nil
	}
	perms, err := permissions.Load(ctx, s.Permissions, eventID, callerPublicKey)
	if err != nil {
		return false, err
	}
	return perms.IsAuthorized(permissions.SeeStampedTicket), nil
}
