package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Adapted from the teacher's session.go/handshake.go: same
// promauto.With(Registry) counter/histogram shape, repurposed from
// session/handshake lifecycle events to envelope.Authenticate's three
// checks (spec.md §4.2).
var (
	// EnvelopesAuthenticated tracks every Authenticate call by outcome.
	EnvelopesAuthenticated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "authenticated_total",
			Help:      "Total number of envelope authentication attempts by outcome",
		},
		[]string{"outcome"}, // success, stale, replay, bad_signature
	)

	// EnvelopeAuthDuration tracks how long the freshness+nonce+signature
	// pipeline takes end to end.
	EnvelopeAuthDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "authenticate_duration_seconds",
			Help:      "Envelope authentication duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	// ReplayRejections tracks nonce reuse detected by noncestore.Store.
	ReplayRejections = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "replay_rejections_total",
			Help:      "Total number of requests rejected for nonce reuse",
		},
	)
)
