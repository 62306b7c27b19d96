// Package metrics holds the Prometheus collectors shared by the acquisition
// controllers, the resource registry and the exporter.
//
// Collectors are registered on a caller supplied prometheus.Registerer so
// tests and multiple sessions in one process never collide on the default
// registry. A nil *Metrics is valid and records nothing.
//
// Exposed series:
//   - imgfetch_batch_ticks_total (Counter): cadence ticks that issued a fetch
//   - imgfetch_batch_items_fetched_total (Counter): items appended to a job
//   - imgfetch_batch_item_failures_total (Counter): failed single-item fetches
//   - imgfetch_stale_results_total{controller} (Counter): results discarded by the generation check
//   - imgfetch_pages_loaded_total{mode} (Counter): applied page fetches, mode replace|append
//   - imgfetch_page_failures_total (Counter): failed page fetches
//   - imgfetch_exports_total{result} (Counter): export attempts by result saved|failed
//   - imgfetch_registry_live_handles (Gauge): handles currently registered
//   - imgfetch_request_duration_seconds{endpoint} (Histogram): remote call latency
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "imgfetch"

// Metrics bundles every collector the module records into.
type Metrics struct {
	BatchTicks      prometheus.Counter
	ItemsFetched    prometheus.Counter
	ItemFailures    prometheus.Counter
	StaleResults    *prometheus.CounterVec
	PagesLoaded     *prometheus.CounterVec
	PageFailures    prometheus.Counter
	Exports         *prometheus.CounterVec
	LiveHandles     prometheus.Gauge
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BatchTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_ticks_total",
			Help:      "Total number of cadence ticks that issued a single-item fetch",
		}),
		ItemsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_fetched_total",
			Help:      "Total number of items appended to batch jobs",
		}),
		ItemFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_item_failures_total",
			Help:      "Total number of failed single-item fetches",
		}),
		StaleResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Total number of asynchronous results discarded on arrival",
		}, []string{"controller"}),
		PagesLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_loaded_total",
			Help:      "Total number of page fetches applied to the loaded collection",
		}, []string{"mode"}),
		PageFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_failures_total",
			Help:      "Total number of failed page fetches",
		}),
		Exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total number of export attempts by result",
		}, []string{"result"}),
		LiveHandles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_live_handles",
			Help:      "Number of local handles currently registered",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of remote server calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) IncTicks() {
	if m != nil {
		m.BatchTicks.Inc()
	}
}

func (m *Metrics) IncItemsFetched() {
	if m != nil {
		m.ItemsFetched.Inc()
	}
}

func (m *Metrics) IncItemFailures() {
	if m != nil {
		m.ItemFailures.Inc()
	}
}

func (m *Metrics) IncStale(controller string) {
	if m != nil {
		m.StaleResults.WithLabelValues(controller).Inc()
	}
}

func (m *Metrics) IncPagesLoaded(mode string) {
	if m != nil {
		m.PagesLoaded.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) IncPageFailures() {
	if m != nil {
		m.PageFailures.Inc()
	}
}

// IncExport records one export attempt
func (m *Metrics) IncExport(saved bool) {
	if m == nil {
		return
	}
	result := "failed"
	if saved {
		result = "saved"
	}
	m.Exports.WithLabelValues(result).Inc()
}

// SetLiveHandles reports the registry size
func (m *Metrics) SetLiveHandles(n int) {
	if m != nil {
		m.LiveHandles.Set(float64(n))
	}
}

// ObserveRequest records how long a call to endpoint took
func (m *Metrics) ObserveRequest(endpoint string, started time.Time) {
	if m != nil {
		m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	}
}
