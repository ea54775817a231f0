// Package metrics exposes Prometheus collectors for the download pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mediaserver"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	DownloadsTotal   *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
	ExpansionsTotal  *prometheus.CounterVec
	StoreErrorsTotal *prometheus.CounterVec
	EventsTotal      *prometheus.CounterVec
	Subscribers      prometheus.Gauge
	EvictionsTotal   prometheus.Counter
	BulkItemsTotal   *prometheus.CounterVec
}

// NewRegistry returns a registry carrying the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates and registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		DownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Downloader invocations by result",
		}, []string{"result"}),
		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Wall time of one downloader invocation",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		ExpansionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Collection probes by outcome",
		}, []string{"outcome"}),
		StoreErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed record store operations",
		}, []string{"op"}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_announced_total",
			Help:      "Events handed to the broadcaster",
		}, []string{"type"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Currently registered event subscribers",
		}),
		EvictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_subscriber_evictions_total",
			Help:      "Subscribers dropped because their inbox was full",
		}),
		BulkItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_items_total",
			Help:      "Bulk edit and delete items by operation and result",
		}, []string{"op", "result"}),
	}
}

// Handler serves the collectors gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveDownload records one downloader run
func (m *Metrics) ObserveDownload(ok bool, seconds float64) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(result(ok)).Inc()
	m.DownloadDuration.Observe(seconds)
}

// ObserveExpansion records a probe outcome such as "collection" or "error"
func (m *Metrics) ObserveExpansion(outcome string) {
	if m == nil {
		return
	}
	m.ExpansionsTotal.WithLabelValues(outcome).Inc()
}

// StoreError counts a failed store operation
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(op).Inc()
}

// EventAnnounced counts a broadcast event
func (m *Metrics) EventAnnounced(eventType string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// SetSubscribers sets the live subscriber gauge
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

// SubscriberEvicted counts a backpressure eviction
func (m *Metrics) SubscriberEvicted() {
	if m == nil {
		return
	}
	m.EvictionsTotal.Inc()
}

// BulkItem records one bulk edit or delete outcome
func (m *Metrics) BulkItem(op string, ok bool) {
	if m == nil {
		return
	}
	m.BulkItemsTotal.WithLabelValues(op, result(ok)).Inc()
}
