package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/envelope"
	"github.com/sage-x-project/zeta/internal/ticket"
)

// transferContent is signed by the ticket's current holder, authorizing
// handoff to transferPublicKey.
type transferContent struct {
	Ticket           string `json:"ticket"`
	TransferPublicKey string `json:"transfer_public_key"`
}

type transferRequest struct {
	EventID  string                           `json:"event_id"`
	Transfer envelope.Auth[transferContent] `json:"transfer"`
}

type transferResponse struct {
	Ticket string `json:"ticket"`
}

// handleTransfer implements spec.md §4.6.4.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[transferRequest](r, s.Nonces)
	if err != nil {
		writeError(w, s, err)
		return
	}

	content := req.Transfer.Unwrap()
	if content.TransferPublicKey != callerPublicKey {
		writeError(w, s, apierr.New(apierr.Validation, "authorization for different user"))
		return
	}

	if _, err := req.Transfer.Authenticate(r.Context(), s.Nonces); err != nil {
		writeError(w, s, err)
		return
	}

	holderPublicKey := req.Transfer.PublicKey

	old, err := ticket.Load(r.Context(), s.Tickets, s.Events, req.EventID, holderPublicKey, content.Ticket)
	if err != nil {
		writeError(w, s, err)
		return
	}

	if old.Version >= old.TransferLimit {
		writeError(w, s, apierr.New(apierr.Conflict, "ticket transfer limit reached"))
		return
	}

	newTicket, err := ticket.Reissue(r.Context(), s.Tickets, s.Events, req.EventID, content.TransferPublicKey, old.Number, old.Version, old.TransferLimit, old.Metadata)
	if err != nil {
		writeError(w, s, err)
		return
	}

	packed, err := newTicket.Pack()
	if err != nil {
		writeError(w, s, apierr.Wrap(apierr.Internal, "pack ticket", err))
		return
	}

	writeResult(w, s, transferResponse{Ticket: packed})
}
