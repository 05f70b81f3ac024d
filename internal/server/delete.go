package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/event"
	"github.com/sage-x-project/zeta/internal/permissions"
)

type deleteRequest struct {
	EventID string `json:"event_id"`
}

// handleDelete implements spec.md §4.6.10: owner-only, cascades to
// event_data and event_permissions rows.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[deleteRequest](r, s.Nonces)
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
		writeError(w, s, apierr.New(apierr.PermissionDenied, "owner only"))
		return
	}

	if err := event.Delete(r.Context(), s.Events, req.EventID); err != nil {
		writeError(w, s, err)
		return
	}

	writeResult(w, s, successResponse{Success: true})
}
