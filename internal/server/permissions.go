package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/permissions"
)

type permissionsRequest struct {
	EventID         string                    `json:"event_id"`
	TargetPublicKey string                    `json:"target_public_key"`
	Permissions     *permissions.Permissions `json:"permissions,omitempty"`
}

// handlePermissions implements spec.md §4.6.9: owner-only read or write
// of another principal's capability set.
func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[permissionsRequest](r, s.Nonces)
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

	if req.Permissions == nil {
		p, err := permissions.Load(r.Context(), s.Permissions, req.EventID, req.TargetPublicKey)
		if err != nil {
			writeError(w, s, err)
			return
		}
		writeResult(w, s, p)
		return
	}

	if err := permissions.Update(r.Context(), s.Permissions, req.EventID, req.TargetPublicKey, *req.Permissions); err != nil {
		writeError(w, s, err)
		return
	}
	writeResult(w, s, req.Permissions)
}
