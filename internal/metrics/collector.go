// Package metrics exposes ZETA's Prometheus instrumentation, one file
// per subsystem following the teacher's internal/metrics layout
// (collector.go + crypto.go/session.go/handshake.go/message.go/
// server.go, one per concern, each declaring its own promauto vars).
//
// The teacher's subsystem files all call promauto.With(Registry) with
// Namespace: namespace, but neither Registry nor namespace is declared
// anywhere in that package — a latent bug, since every one of those
// files would fail to compile on its own. This file supplies both,
// repurposed for ZETA: Registry is a dedicated prometheus.Registry
// rather than the global DefaultRegisterer, so tests can spin up an
// isolated one per run without colliding on global metric registration.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zeta"

// Registry is the Prometheus registry every collector in this package
// registers against.
var Registry = prometheus.NewRegistry()

// Collector tracks in-process counters read out as a Snapshot,
// independent of the promauto collectors declared in the other files in
// this package — used by internal/health's /healthz endpoint,
// which wants a cheap in-memory snapshot rather than a full Prometheus
// scrape.
type Collector struct {
	mu sync.RWMutex

	TicketsIssued   int64
	TicketsRedeemed int64
	TicketsStamped  int64
	TicketsCanceled int64
	TicketTransfers int64

	EnvelopesAuthenticated int64
	SignatureFailures      int64
	ReplayRejections       int64

	CASConflicts int64

	startTime time.Time
}

// NewCollector creates a Collector with its uptime clock started.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) RecordTicketIssued()   { c.inc(&c.TicketsIssued) }
func (c *Collector) RecordTicketRedeemed() { c.inc(&c.TicketsRedeemed) }
func (c *Collector) RecordTicketStamped()  { c.inc(&c.TicketsStamped) }
func (c *Collector) RecordTicketCanceled() { c.inc(&c.TicketsCanceled) }
func (c *Collector) RecordTicketTransfer() { c.inc(&c.TicketTransfers) }

func (c *Collector) RecordEnvelopeAuthenticated() { c.inc(&c.EnvelopesAuthenticated) }
func (c *Collector) RecordSignatureFailure()      { c.inc(&c.SignatureFailures) }
func (c *Collector) RecordReplayRejection()        { c.inc(&c.ReplayRejections) }

func (c *Collector) RecordCASConflict() { c.inc(&c.CASConflicts) }

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*counter++
}

// Snapshot is a point-in-time read of a Collector.
type Snapshot struct {
	Uptime time.Duration

	TicketsIssued   int64
	TicketsRedeemed int64
	TicketsStamped  int64
	TicketsCanceled int64
	TicketTransfers int64

	EnvelopesAuthenticated int64
	SignatureFailures      int64
	ReplayRejections       int64

	CASConflicts int64
}

// GetSnapshot returns a consistent read of every counter.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Uptime:                 time.Since(c.startTime),
		TicketsIssued:          c.TicketsIssued,
		TicketsRedeemed:        c.TicketsRedeemed,
		TicketsStamped:         c.TicketsStamped,
		TicketsCanceled:        c.TicketsCanceled,
		TicketTransfers:        c.TicketTransfers,
		EnvelopesAuthenticated: c.EnvelopesAuthenticated,
		SignatureFailures:      c.SignatureFailures,
		ReplayRejections:       c.ReplayRejections,
		CASConflicts:           c.CASConflicts,
	}
}

var globalCollector = NewCollector()

// GetGlobalCollector returns the process-wide Collector.
func GetGlobalCollector() *Collector { return globalCollector }
