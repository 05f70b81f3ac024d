package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/ticket"
)

type redeemRequest struct {
	EventID string `json:"event_id"`
	Ticket  string `json:"ticket"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// handleRedeem implements spec.md §4.6.5: the caller must be the ticket's
// current holder.
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[redeemRequest](r, s.Nonces)
	if err != nil {
		writeError(w, s, err)
		return
	}

	t, err := ticket.Load(r.Context(), s.Tickets, s.Events, req.EventID, callerPublicKey, req.Ticket)
	if err != nil {
		writeError(w, s, err)
		return
	}

	if err := t.Redeem(r.Context(), s.Tickets); err != nil {
		writeError(w, s, err)
		return
	}

	writeResult(w, s, successResponse{Success: true})
}
