package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Adapted from the teacher's message.go: same counter/histogram shape,
// repurposed from message processing to ticket lifecycle transitions
// (spec.md §4.7: register, reissue/transfer, redeem, stamp, cancel).
var (
	// TicketTransitions tracks every state-byte transition by kind and
	// outcome, mirroring the CAS-or-reject shape of internal/ticket's
	// Register/Reissue/Redeem/Stamp/Cancel.
	TicketTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ticket",
			Name:      "transitions_total",
			Help:      "Total number of ticket state transitions by kind and outcome",
		},
		[]string{"kind", "outcome"}, // register/transfer/redeem/stamp/cancel, success/conflict/error
	)

	// TicketsIssued counts successful Register calls across all events
	// (no per-event label).
	TicketsIssued = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ticket",
			Name:      "issued_total",
			Help:      "Total number of tickets issued",
		},
	)

	// TicketPackDuration tracks Pack/unseal latency.
	TicketPackDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ticket",
			Name:      "seal_duration_seconds",
			Help:      "Ticket seal/unseal duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		},
		[]string{"operation"}, // pack, unseal
	)
)
