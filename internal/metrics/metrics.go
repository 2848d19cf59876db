// Package metrics exposes Prometheus collectors for query execution.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "dirquery"

// Request modes.
const (
	ModeSingle = "single"
	ModePaged  = "paged"
)

// Collector holds the query metrics. A nil *Collector records nothing, so
// callers never need to check whether metrics are enabled.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	entries  *prometheus.CounterVec
	results  *prometheus.CounterVec
	faults   *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "search_requests_total",
				Help:      "Search requests sent to the directory",
			},
			[]string{"shape", "mode", "status"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "search_request_duration_seconds",
				Help:      "Round trip time of one search request",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"shape", "mode"},
		),
		entries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "entries_received_total",
				Help:      "Entries returned by the directory",
			},
			[]string{"shape"},
		),
		results: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "results_materialized_total",
				Help:      "Entries turned into caller-visible results",
			},
			[]string{"shape"},
		),
		faults: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "query_faults_total",
				Help:      "Queries that ended in the faulted state",
			},
			[]string{"kind"},
		),
	}
}

// ObserveRequest records one search round trip.
func (c *Collector) ObserveRequest(shape, mode string, d time.Duration, entries int, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.requests.WithLabelValues(shape, mode, status).Inc()
	c.duration.WithLabelValues(shape, mode).Observe(d.Seconds())
	if entries > 0 {
		c.entries.WithLabelValues(shape).Add(float64(entries))
	}
}

// ObserveResult records one materialized result.
func (c *Collector) ObserveResult(shape string) {
	if c == nil {
		return
	}
	c.results.WithLabelValues(shape).Inc()
}

// ObserveFault records a query that faulted. kind is a short error class
// such as "connection" or "conversion".
func (c *Collector) ObserveFault(kind string) {
	if c == nil {
		return
	}
	c.faults.WithLabelValues(kind).Inc()
}

// Handler serves the metrics gathered by g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
