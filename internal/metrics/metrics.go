// Package metrics exposes crawl counters through Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a crawl run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FrontierPops    prometheus.Counter
	FrontierSize    prometheus.Gauge
	PagesFetched    *prometheus.CounterVec   // kind: index, post
	FetchFailures   *prometheus.CounterVec   // kind, error_type
	FetchRetries    prometheus.Counter
	FetchDuration   *prometheus.HistogramVec // kind
	LinksDiscovered *prometheus.CounterVec   // kind: post, outbound
	SitesEnqueued   prometheus.Counter
}

// NewMetrics registers the crawl metrics on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		FrontierPops: factory.NewCounter(prometheus.CounterOpts{
			Name: "postcrawl_frontier_pops_total",
			Help: "Frontier entries dequeued for processing.",
		}),
		FrontierSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "postcrawl_frontier_size",
			Help: "Entries currently pending in the frontier.",
		}),
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "postcrawl_pages_fetched_total",
			Help: "Pages fetched successfully.",
		}, []string{"kind"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "postcrawl_fetch_failures_total",
			Help: "Pages whose fetch failed after retries.",
		}, []string{"kind", "error_type"}),
		FetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "postcrawl_fetch_retries_total",
			Help: "Fetch attempts retried after a transient error.",
		}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "postcrawl_fetch_duration_seconds",
			Help:    "Time spent fetching a page, retries included.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		LinksDiscovered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "postcrawl_links_discovered_total",
			Help: "New links added to the result set.",
		}, []string{"kind"}),
		SitesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "postcrawl_sites_enqueued_total",
			Help: "Discovered sites added to the frontier.",
		}),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncPop() {
	if m == nil {
		return
	}
	m.FrontierPops.Inc()
}

func (m *Metrics) SetFrontierSize(n int) {
	if m == nil {
		return
	}
	m.FrontierSize.Set(float64(n))
}

// ObserveFetch records the outcome of one page fetch. errorType is empty on success.
func (m *Metrics) ObserveFetch(kind string, elapsed time.Duration, errorType string) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if errorType == "" {
		m.PagesFetched.WithLabelValues(kind).Inc()
		return
	}
	m.FetchFailures.WithLabelValues(kind, errorType).Inc()
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

func (m *Metrics) AddDiscovered(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksDiscovered.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) IncSitesEnqueued() {
	if m == nil {
		return
	}
	m.SitesEnqueued.Inc()
}
