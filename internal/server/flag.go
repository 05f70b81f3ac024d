package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/event"
	"github.com/sage-x-project/zeta/internal/permissions"
	"github.com/sage-x-project/zeta/internal/ticket"
)

type flagRequest struct {
	EventID      string `json:"event_id"`
	TicketNumber int    `json:"ticket_number"`
	Value        *int   `json:"value,omitempty"`
	Public       *bool  `json:"public,omitempty"`
}

type flagResponse struct {
	Value  int  `json:"value"`
	Public bool `json:"public"`
}

// handleFlag implements spec.md §4.6.8. ticket_number is external
// (1-indexed); the internal ticket number used against flag_bytes is one
// less.
func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[flagRequest](r, s.Nonces)
	if err != nil {
		writeError(w, s, err)
		return
	}

	ev, err := event.Load(r.Context(), s.Events, req.EventID)
	if err != nil {
		writeError(w, s, err)
		return
	}
	if !ev.EnableFlags {
		if req.Value != nil || req.Public != nil {
			writeError(w, s, apierr.New(apierr.Conflict, "ticket flag set failed"))
		} else {
			writeError(w, s, apierr.New(apierr.Conflict, "ticket flag retrieval failed"))
		}
		return
	}

	t := &ticket.Ticket{EventID: req.EventID, Number: req.TicketNumber - 1}

	isOwner, err := permissions.IsOwner(r.Context(), s.Events, req.EventID, callerPublicKey)
	if err != nil {
		writeError(w, s, err)
		return
	}
	perms, err := permissions.Load(r.Context(), s.Permissions, req.EventID, callerPublicKey)
	if err != nil {
		writeError(w, s, err)
		return
	}

	if req.Value != nil || req.Public != nil {
		if !isOwner && !perms.IsAuthorized(permissions.UpdateTicketFlag) {
			writeError(w, s, apierr.New(apierr.PermissionDenied, "not authorized to update ticket flag"))
			return
		}
		value, public, err := t.UpdateFlag(r.Context(), s.Tickets, req.Value, req.Public)
		if err != nil {
			writeError(w, s, err)
			return
		}
		writeResult(w, s, flagResponse{Value: value, Public: public})
		return
	}

	value, public, err := t.GetFlag(r.Context(), s.Tickets)
	if err != nil {
		writeError(w, s, err)
		return
	}
	if !public && !isOwner && !perms.IsAuthorized(permissions.SeeTicketFlag) {
		writeError(w, s, apierr.New(apierr.PermissionDenied, "ticket flag is not public"))
		return
	}
	writeResult(w, s, flagResponse{Value: value, Public: public})
}
