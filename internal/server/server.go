// Package server wires spec.md §4.6's ten endpoint flows onto a bare
// net/http.ServeMux, the same routing convention the teacher's
// cmd/test-server and internal/metrics.StartServer use rather than
// reaching for a router framework.
//
// Every handler follows the same shape: decode Auth<RequestT>,
// authenticate it against the nonce store, run the domain logic in
// internal/event, internal/ticket, or internal/permissions, then sign
// and write an Auth<ResponseT> (or an error envelope) with the server's
// own key. writeResult centralizes that last step so no handler picks an
// HTTP status code itself.
package server

import (
	"net/http"

	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/health"
	"github.com/sage-x-project/zeta/internal/logger"
	"github.com/sage-x-project/zeta/internal/metrics"
	"github.com/sage-x-project/zeta/internal/noncestore"
	"github.com/sage-x-project/zeta/internal/storage"
)

// Server holds everything a handler needs: the persistence sub-stores, the
// replay-defense nonce store, and the key the server signs every response
// with.
type Server struct {
	Events      storage.EventStore
	Tickets     storage.TicketStore
	Permissions storage.PermissionsStore
	Nonces      noncestore.Store
	Signer      *cryptoutil.Signer
	Log         logger.Logger
	Health      *health.Checker
}

// New builds a Server and its routed mux. health may be nil, in which
// case /healthz is not registered (used by tests that have no pool to
// probe).
func New(events storage.EventStore, tickets storage.TicketStore, permissions storage.PermissionsStore, nonces noncestore.Store, signer *cryptoutil.Signer, log logger.Logger, healthChecker *health.Checker) *Server {
	return &Server{
		Events:      events,
		Tickets:     tickets,
		Permissions: permissions,
		Nonces:      nonces,
		Signer:      signer,
		Log:         log,
		Health:      healthChecker,
	}
}

// Handler builds the routed mux spec.md §6 describes: ten POST-only JSON
// endpoints, plus /metrics for Prometheus scraping.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /create", s.handleCreate)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /transfer", s.handleTransfer)
	mux.HandleFunc("POST /redeem", s.handleRedeem)
	mux.HandleFunc("POST /validate", s.handleValidate)
	mux.HandleFunc("POST /cancel", s.handleCancel)
	mux.HandleFunc("POST /flag", s.handleFlag)
	mux.HandleFunc("POST /permissions", s.handlePermissions)
	mux.HandleFunc("POST /delete", s.handleDelete)

	mux.Handle("/metrics", metrics.Handler())
	if s.Health != nil {
		mux.Handle("/healthz", s.Health.Handler())
	}

	return mux
}
