// Package metrics provides Prometheus metrics for dirstat.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private so that tests and embedders do not collide with the
// default registerer.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	scansTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirstat_scans_total",
			Help: "Directory scans by outcome",
		},
		[]string{"result"},
	)

	scanDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirstat_scan_duration_seconds",
			Help:    "Time to read a directory tree",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	treeNodes = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirstat_tree_nodes",
			Help: "Number of entries in the open directory tree",
		},
	)

	cleanupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirstat_cleanups_total",
			Help: "Cleanup invocations by action and outcome",
		},
		[]string{"action", "result"},
	)

	treemapRebuilds = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "dirstat_treemap_rebuilds_total",
			Help: "Treemap layouts computed",
		},
	)

	activityTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirstat_activity_total",
			Help: "Recorded user activity by kind",
		},
		[]string{"kind"},
	)

	watchEvents = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "dirstat_watch_events_total",
			Help: "Filesystem change notifications received",
		},
	)
)

// RecordScan records a finished or aborted scan.
func RecordScan(d time.Duration, aborted bool) {
	result := "finished"
	if aborted {
		result = "aborted"
	}
	scansTotal.WithLabelValues(result).Inc()
	scanDuration.Observe(d.Seconds())
}

// SetTreeNodes updates the size of the open tree.
func SetTreeNodes(n int) {
	treeNodes.Set(float64(n))
}

// RecordCleanup records one cleanup invocation.
func RecordCleanup(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cleanupsTotal.WithLabelValues(action, result).Inc()
}

// RecordTreemapRebuild counts one layout computation.
func RecordTreemapRebuild() {
	treemapRebuilds.Inc()
}

// RecordActivity mirrors an activity counter increment.
func RecordActivity(kind string) {
	activityTotal.WithLabelValues(kind).Inc()
}

// RecordWatchEvent counts one filesystem notification.
func RecordWatchEvent() {
	watchEvents.Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
