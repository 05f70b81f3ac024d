// Package health implements ZETA's readiness probe, exposed at /healthz.
// Adapted from the teacher's pkg/health (types.go/checker.go/server.go):
// same Status/HealthStatus shape and Checker.CheckAll flow, generalized
// from a blockchain-RPC liveness check to the two dependencies spec.md
// §4.1/§6 requires the server refuse to start (or serve) without: the
// Postgres pool and the nonce store. spec.md §4.1 states the server
// "must not accept a request until the [nonce] store is initialized";
// this probe lets an external load balancer or orchestrator observe that
// precondition instead of discovering it via failed requests.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/zeta/internal/metrics"
	"github.com/sage-x-project/zeta/internal/noncestore"
)

// Status is the coarse health verdict for one dependency or the whole probe.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Report is the JSON body /healthz returns.
type Report struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Database  Status           `json:"database"`
	Nonces    Status           `json:"nonce_store"`
	Errors    []string         `json:"errors,omitempty"`
	Stats     metrics.Snapshot `json:"stats"`
}

// Checker probes the database pool and nonce store spec.md requires be
// reachable before the server accepts requests.
type Checker struct {
	pool   *pgxpool.Pool
	nonces noncestore.Store
}

// NewChecker builds a Checker over the live pool and nonce store a
// running server holds.
func NewChecker(pool *pgxpool.Pool, nonces noncestore.Store) *Checker {
	return &Checker{pool: pool, nonces: nonces}
}

// Check runs both probes and returns the combined report.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Status: StatusHealthy, Timestamp: time.Now(), Database: StatusHealthy, Nonces: StatusHealthy,
		Stats: metrics.GetGlobalCollector().GetSnapshot(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.pool.Ping(pingCtx); err != nil {
		report.Database = StatusUnhealthy
		report.Status = StatusUnhealthy
		report.Errors = append(report.Errors, "database: "+err.Error())
	}

	// first_use on a throwaway key both confirms the store accepts writes
	// and never collides with a real replay key, since no signer ever
	// presents the public key "healthz".
	if _, err := c.nonces.FirstUse(ctx, noncestore.Key("healthz", time.Now().String()), time.Second); err != nil {
		report.Nonces = StatusUnhealthy
		report.Status = StatusUnhealthy
		report.Errors = append(report.Errors, "nonce store: "+err.Error())
	}

	return report
}

// Handler serves the /healthz endpoint: 200 when healthy, 503 otherwise.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Check(r.Context())

		status := http.StatusOK
		if report.Status != StatusHealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})
}
