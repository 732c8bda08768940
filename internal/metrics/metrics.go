package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for case-sentinel.
type Metrics struct {
	registry                 *prometheus.Registry
	cycleDurationSeconds     *prometheus.HistogramVec
	fetchErrorsTotal         *prometheus.CounterVec
	extractionErrorsTotal    *prometheus.CounterVec
	updatesTotal             *prometheus.CounterVec
	notificationFailures     *prometheus.CounterVec
	lastSuccessfulCycleGauge *prometheus.GaugeVec
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "case_sentinel_cycle_duration_seconds",
			Help:    "Duration of successful poll cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		fetchErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_sentinel_fetch_errors_total",
			Help: "Total failed fetches by source.",
		}, []string{"source"}),
		extractionErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_sentinel_extraction_errors_total",
			Help: "Total failed extractions by source.",
		}, []string{"source"}),
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_sentinel_updates_total",
			Help: "Total committed records that differed from their predecessor.",
		}, []string{"source"}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_sentinel_notification_failures_total",
			Help: "Total notifications that could not be delivered.",
		}, []string{"source"}),
		lastSuccessfulCycleGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "case_sentinel_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last successful cycle by source.",
		}, []string{"source"}),
	}

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.fetchErrorsTotal,
		m.extractionErrorsTotal,
		m.updatesTotal,
		m.notificationFailures,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// IncFetchErrors increments the fetch error counter for a source.
func (m *Metrics) IncFetchErrors(source string) {
	if m == nil {
		return
	}
	m.fetchErrorsTotal.WithLabelValues(source).Inc()
}

// IncExtractionErrors increments the extraction error counter for a source.
func (m *Metrics) IncExtractionErrors(source string) {
	if m == nil {
		return
	}
	m.extractionErrorsTotal.WithLabelValues(source).Inc()
}

// IncUpdates increments the detected update counter for a source.
func (m *Metrics) IncUpdates(source string) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(source).Inc()
}

// IncNotificationFailures increments the failed notification counter for a source.
func (m *Metrics) IncNotificationFailures(source string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(source).Inc()
}

// SetLastSuccessfulCycleTimestamp sets the last successful cycle time for a source.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(source string, t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.WithLabelValues(source).Set(float64(t.Unix()))
}
