// Package metrics exposes operational counters for the SafeBid service
// and serves them on a dedicated listener in Prometheus text format.
package metrics

import (
	"context"
	"net/http"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

var (
	auctionsCreated  = vmetrics.NewCounter("safebid_auctions_created_total")
	auctionsResolved = vmetrics.NewCounter("safebid_auctions_resolved_total")
	bidsAccepted     = vmetrics.NewCounter("safebid_bids_accepted_total")
	bidsRejected     = vmetrics.NewCounter("safebid_bids_rejected_total")
	settlements      = vmetrics.NewCounter("safebid_settlements_total")
)

// IncAuctionsCreated records a successful createAuction.
func IncAuctionsCreated() { auctionsCreated.Inc() }

// IncAuctionsResolved records a transition to Ended.
func IncAuctionsResolved() { auctionsResolved.Inc() }

// IncBidsAccepted records an accepted bid.
func IncBidsAccepted() { bidsAccepted.Inc() }

// IncBidsRejected records a rejected bid submission.
func IncBidsRejected() { bidsRejected.Inc() }

// IncSettlements records a completed purchase.
func IncSettlements() { settlements.Inc() }

// MetricsServer serves the metrics endpoint on its own address so the
// public API listener never exposes internals.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given address. An empty address
// returns a server whose ListenAndServe is a no-op.
func New(name, addr string) (*MetricsServer, error) {
	if addr == "" {
		return &MetricsServer{}, nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})

	return &MetricsServer{srv: &http.Server{Addr: addr, Handler: mux}}, nil
}

// ListenAndServe starts the metrics listener.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}
