package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rsh2prasad/authcfgd/internal/logger"
)

// Reconciliation counters. Registered on the default registry; the
// endpoint is only served when the daemon config asks for it.
var (
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcfgd_reconcile_passes_total",
			Help: "Reconciliation passes by result (ok, failed, noop)",
		},
		[]string{"result"},
	)

	FileWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcfgd_file_writes_total",
			Help: "Files actually rewritten on disk",
		},
	)

	WritesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcfgd_file_writes_skipped_total",
			Help: "Commits skipped because on-disk content already matched",
		},
	)
)

// Serve exposes /metrics on addr in a background goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics listener on %s failed: %v", addr, err)
		}
	}()
}
