package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sage-x-project/zeta/internal/apierr"
	"github.com/sage-x-project/zeta/internal/envelope"
	"github.com/sage-x-project/zeta/internal/logger"
	"github.com/sage-x-project/zeta/internal/metrics"
	"github.com/sage-x-project/zeta/internal/noncestore"
)

// errorBody is the wire shape spec.md §6 assigns a failed request: signed
// like any other response, but carrying error=true and a client-safe
// detail string instead of a content payload.
type errorBody struct {
	Error  bool   `json:"error"`
	Detail string `json:"detail"`
}

// decodeAndAuthenticate reads a JSON Auth[T] body, runs the freshness,
// replay, and signature checks every endpoint requires before touching
// domain logic, and returns the unwrapped content plus the caller's
// public key.
func decodeAndAuthenticate[T any](r *http.Request, nonces noncestore.Store) (T, string, error) {
	var auth envelope.Auth[T]
	var zero T

	if err := json.NewDecoder(r.Body).Decode(&auth); err != nil {
		return zero, "", apierr.Wrap(apierr.Validation, "malformed request body", err)
	}

	start := time.Now()
	content, err := auth.Authenticate(r.Context(), nonces)
	metrics.EnvelopeAuthDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		recordAuthOutcome(err)
		return zero, "", err
	}
	metrics.EnvelopesAuthenticated.WithLabelValues("success").Inc()
	metrics.GetGlobalCollector().RecordEnvelopeAuthenticated()
	return content, auth.PublicKey, nil
}

func recordAuthOutcome(err error) {
	outcome := "bad_signature"
	collector := metrics.GetGlobalCollector()
	if de, ok := apierr.As(err); ok {
		switch {
		case de.Kind == apierr.Validation:
			outcome = "stale"
		case de.Kind == apierr.Conflict:
			outcome = "replay"
			metrics.ReplayRejections.Inc()
			collector.RecordReplayRejection()
		}
	}
	if outcome == "bad_signature" {
		collector.RecordSignatureFailure()
	}
	metrics.EnvelopesAuthenticated.WithLabelValues(outcome).Inc()
}

// writeResult signs content with the server's key and writes it as the
// response body, matching spec.md §6: "every response body ... is an
// Auth<T> signed by the server".
func writeResult[T any](w http.ResponseWriter, s *Server, content T) {
	auth, err := envelope.Load(content, s.Signer)
	if err != nil {
		writeError(w, s, apierr.Wrap(apierr.Internal, "sign response", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(auth)
}

// writeError maps a domain error to its HTTP status code, logs internal
// failures with their cause, and writes a signed error envelope.
func writeError(w http.ResponseWriter, s *Server, err error) {
	de, ok := apierr.As(err)
	if !ok {
		de = apierr.Wrap(apierr.Internal, "unexpected error", err)
	}

	if de.Kind == apierr.Internal {
		s.Log.Error("internal error", logger.String("detail", de.Message), logger.Error(de.Cause()))
	}

	body := errorBody{Error: true, Detail: de.Message}
	auth, signErr := envelope.Load(body, s.Signer)
	status := apierr.StatusCode(de.Kind)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if signErr != nil {
		_ = json.NewEncoder(w).Encode(body)
		return
	}
	_ = json.NewEncoder(w).Encode(auth)
}
