package server

import (
	"encoding/json"
	"net/http"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/envelope"
	"github.com/sage-x-project/zeta/internal/event"
	"github.com/sage-x-project/zeta/internal/permissions"
	"github.com/sage-x-project/zeta/internal/ticket"
)

// verification is the content of a restricted event's registration
// authorization block: signed by either the event owner or a principal
// holding authorize_registration. Metadata is an opaque JSON value
// (spec.md §3), not necessarily a string.
type verification struct {
	EventID       string          `json:"event_id"`
	PublicKey     string          `json:"public_key"`
	TransferLimit *int            `json:"transfer_limit,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

type registerRequest struct {
	EventID      string                          `json:"event_id"`
	Verification *envelope.Auth[verification] `json:"verification,omitempty"`
}

type registerResponse struct {
	Ticket string `json:"ticket"`
}

// handleRegister implements spec.md §4.6.3.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, callerPublicKey, err := decodeAndAuthenticate[registerRequest](r, s.Nonces)
	if err != nil {
		writeError(w, s, err)
		return
	}

	ev, err := event.Load(r.Context(), s.Events, req.EventID)
	if err != nil {
		writeError(w, s, err)
		return
	}

	var transferLimit *int
	var metadata json.RawMessage

	if ev.Restricted {
		if req.Verification == nil {
			writeError(w, s, apierr.New(apierr.PermissionDenied, "verification required"))
			return
		}
		v := req.Verification.Unwrap()
		if v.EventID != req.EventID {
			writeError(w, s, apierr.New(apierr.Validation, "verification for different event"))
			return
		}
		if v.PublicKey != callerPublicKey {
			writeError(w, s, apierr.New(apierr.Validation, "verification for different user"))
			return
		}

		isOwner, err := permissions.IsOwner(r.Context(), s.Events, req.EventID, req.Verification.PublicKey)
		if err != nil {
			writeError(w, s, err)
			return
		}
		if !isOwner {
			perms, err := permissions.Load(r.Context(), s.Permissions, req.EventID, req.Verification.PublicKey)
			if err != nil {
				writeError(w, s, err)
				return
			}
			if !perms.IsAuthorized(permissions.AuthorizeRegistration) {
				writeError(w, s, apierr.New(apierr.PermissionDenied, "not authorized to register tickets"))
				return
			}
		}

		if _, err := req.Verification.Authenticate(r.Context(), s.Nonces); err != nil {
			writeError(w, s, err)
			return
		}

		transferLimit = v.TransferLimit
		metadata = v.Metadata
	}

	t, err := ticket.Register(r.Context(), s.Tickets, s.Events, req.EventID, callerPublicKey, metadata, transferLimit, ev.TransferLimit)
	if err != nil {
		writeError(w, s, err)
		return
	}

	packed, err := t.Pack()
	if err != nil {
		writeError(w, s, apierr.Wrap(apierr.Internal, "pack ticket", err))
		return
	}

	writeResult(w, s, registerResponse{Ticket: packed})
}
