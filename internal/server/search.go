package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/event"
)

const maxSearchLimit = 64

type searchRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
	Mode  string `json:"mode"` // "id" or "text"
}

type searchResponse struct {
	Events []event.Event `json:"events"`
}

// handleSearch implements spec.md §4.6.2: "id" mode looks up a single
// event by ID, "text" mode does a bounded case-insensitive substring
// match on name.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, _, err := decodeAndAuthenticate[searchRequest](r, s.Nonces)
	if err != nil {
		writeError(w, s, err)
		return
	}

	switch req.Mode {
	case "id":
		ev, err := event.Load(r.Context(), s.Events, req.Text)
		if err != nil {
			writeError(w, s, err)
			return
		}
		writeResult(w, s, searchResponse{Events: []event.Event{*ev}})

	case "text":
		limit := req.Limit
		if limit <= 0 || limit > maxSearchLimit {
			limit = maxSearchLimit
		}
		evs, err := event.Search(r.Context(), s.Events, req.Text, limit)
		if err != nil {
			writeError(w, s, err)
			return
		}
		writeResult(w, s, searchResponse{Events: evs})

	default:
		writeError(w, s, apierr.New(apierr.Validation, "mode must be id or text"))
	}
}
