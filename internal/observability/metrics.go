package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the store service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	QueryDuration    *prometheus.HistogramVec
	OwnershipChanges *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	NearbyScanned    prometheus.Histogram
	OutboxDeliveries *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them on reg.
// PRE: reg is non-nil and has none of these metrics registered
// POST: Returns Metrics bound to reg
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefinder_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefinder_db_query_duration_seconds",
			Help:    "Database call latency by operation.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		OwnershipChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefinder_ownership_changes_total",
			Help: "Owner list mutations by kind (added, removed, unchanged).",
		}, []string{"change"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefinder_events_published_total",
			Help: "Events handed to the event sink by topic and outcome.",
		}, []string{"topic", "outcome"}),
		NearbyScanned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefinder_nearby_scanned_stores",
			Help:    "Number of stores scanned per nearby query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		OutboxDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefinder_outbox_deliveries_total",
			Help: "Outbox delivery attempts by resulting status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.RequestDuration,
		m.QueryDuration,
		m.OwnershipChanges,
		m.EventsPublished,
		m.NearbyScanned,
		m.OutboxDeliveries,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// ObserveQuery records one database call.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordOwnershipChange counts an owner-list mutation.
func (m *Metrics) RecordOwnershipChange(change string) {
	if m == nil {
		return
	}
	m.OwnershipChanges.WithLabelValues(change).Inc()
}

// RecordPublish counts an event publish attempt.
func (m *Metrics) RecordPublish(topic string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(topic, outcome).Inc()
}

// RecordNearbyScan records how many candidates a nearby query scanned.
func (m *Metrics) RecordNearbyScan(n int) {
	if m == nil {
		return
	}
	m.NearbyScanned.Observe(float64(n))
}

// RecordOutboxDelivery counts an outbox delivery attempt by resulting status.
func (m *Metrics) RecordOutboxDelivery(status string) {
	if m == nil {
		return
	}
	m.OutboxDeliveries.WithLabelValues(status).Inc()
}
