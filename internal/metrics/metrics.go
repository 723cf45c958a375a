// Package metrics exposes Prometheus instrumentation for the dispatcher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchRequests counts inbound dispatch requests by terminal status.
	DispatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushgate_dispatch_requests_total",
			Help: "Notification dispatch requests by status.",
		},
		[]string{"status"},
	)

	// Deliveries counts per-token delivery outcomes.
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushgate_deliveries_total",
			Help: "Per-token delivery outcomes by platform and result.",
		},
		[]string{"platform", "result"},
	)
)

// Handler returns the Prometheus exposition handler for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
