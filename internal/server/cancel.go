package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/permissions"
	"github.com/sage-x-project/zeta/internal/ticket"
)

type cancelRequest struct {
	EventID      string `json:"event_id"`
	TicketNumber int    `json:"ticket_number"`
}

// handleCancel implements spec.md §4.6.7: cancel_ticket capability
// required (owner implicit); ticket_number is the external 1-indexed
// number, converted to the internal 0-indexed one CAS operates on.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[cancelRequest](r, s.Nonces)
	if err != nil {
		writeError(w, s, err)
		return
	}

	isOwner, err := permissions.IsOwner(r.Context(), s.Events, req.EventID, callerPublicKey)
	if err != nil {
		writeError(w, s, err)
		return
	}
	if !isOwner {
		perms, err := permissions.Load(r.Context(), s.Permissions, req.EventID, callerPublicKey)
		if err != nil {
			writeError(w, s, err)
			return
		}
		if !perms.IsAuthorized(permissions.CancelTicket) {
			writeError(w, s, apierr.New(apierr.PermissionDenied, "not authorized to cancel tickets"))
			return
		}
	}

	number := req.TicketNumber - 1
	b, ok, err := s.Tickets.LoadStateByte(r.Context(), req.EventID, number)
	if err != nil {
		writeError(w, s, apierr.Wrap(apierr.Internal, "load ticket state", err))
		return
	}
	if !ok {
		writeError(w, s, apierr.New(apierr.NotFound, "ticket not found"))
		return
	}

	t := &ticket.Ticket{EventID: req.EventID, Number: number, Version: b & (ticket.RedeemedByte - 1)}
	if err := t.Cancel(r.Context(), s.Tickets); err != nil {
		writeError(w, s, err)
		return
	}

	writeResult(w, s, successResponse{Success: true})
}
