// Package metrics exposes the oracle's Prometheus counters on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide counters. They are initialized once at
// startup and only ever incremented afterward.
type Metrics struct {
	ReconcileRunsTotal       prometheus.Counter
	ReconcileRunsOK          prometheus.Counter
	ReconcileRunsErr         prometheus.Counter
	ValidDeploymentCacheHits prometheus.Counter
}

// New registers and returns the oracle's counters against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReconcileRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Total number of reconciliation cycles run.",
		}),
		ReconcileRunsOK: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_runs_ok",
			Help: "Reconciliation cycles that completed without error.",
		}),
		ReconcileRunsErr: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_runs_err",
			Help: "Reconciliation cycles that aborted with a transport/other error.",
		}),
		ValidDeploymentCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "valid_deployment_cache_hits",
			Help: "Validations skipped because the valid-deployment cache was still fresh.",
		}),
	}
}

// Serve starts an HTTP server exposing reg's metrics at /metrics on addr.
// It blocks until the server stops; callers typically run it in a goroutine.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
