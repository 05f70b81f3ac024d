package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/event"
)

// eventInput is the client-supplied shape of a new event, matching
// event.New's parameters field-for-field.
type eventInput struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Tickets       int    `json:"tickets"`
	Restricted    bool   `json:"restricted"`
	TransferLimit int    `json:"transfer_limit"`
	EnableFlags   bool   `json:"enable_flags"`
}

type createRequest struct {
	Event eventInput `json:"event"`
}

type createResponse struct {
	EventID string `json:"event_id"`
}

// handleCreate implements spec.md §4.6.1: the caller becomes the new
// event's owner.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[createRequest](r, s.Nonces)
	if err != nil {
		writeError(w, s, err)
		return
	}

	ev, err := event.New(req.Event.Name, req.Event.Description, req.Event.Tickets, req.Event.Restricted, req.Event.TransferLimit, req.Event.EnableFlags)
	if err != nil {
		writeError(w, s, err)
		return
	}

	if err := ev.Create(r.Context(), s.Events, callerPublicKey); err != nil {
		writeError(w, s, err)
		return
	}

	writeResult(w, s, createResponse{EventID: ev.ID})
}
