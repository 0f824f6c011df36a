// Package health exposes the daemon's liveness endpoint and Prometheus
// metrics for check activity.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is what /healthz reports.
type Snapshot struct {
	Status      string    `json:"status"`
	Entries     int       `json:"entries"`
	LastBatchAt time.Time `json:"last_batch_at,omitzero"`
	Uptime      string    `json:"uptime"`
}

// Source supplies the live numbers behind a Snapshot.
type Source interface {
	Health() Snapshot
}

// Handler returns a mux serving /healthz and /metrics.
func Handler(src Source) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snap := src.Health()
		if snap.Status == "" {
			snap.Status = "ok"
		}
		_ = json.NewEncoder(w).Encode(snap)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
